// Package bridge owns the host side of the viewer link.
//
// Ownership boundary:
// - dial/handshake/reconnect lifecycle against one viewer address
// - request/response correlation for in-flight commands
// - readiness notice forwarding into the coordinator
package bridge
