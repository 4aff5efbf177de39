// Package node defines the identity surface shared by HTTP-facing
// processes in a viewctl deployment.
package node

import "github.com/gin-gonic/gin"

// KindHost identifies the coordinator process that owns the command
// queue and the viewer bridge.
const KindHost = "host"

// Node is implemented by processes that expose an HTTP surface.
type Node interface {
	NodeID() string
	Kind() string
	HTTPRouter() *gin.Engine
}
