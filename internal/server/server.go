package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/auth"
	"github.com/viewctl/viewctl/internal/bridge"
	"github.com/viewctl/viewctl/internal/command"
	"github.com/viewctl/viewctl/internal/node"
	"github.com/viewctl/viewctl/internal/observability"
)

// Server exposes one coordinator over HTTP.
type Server struct {
	ID       string    `json:"id"`
	Addr     string    `json:"addr"`
	Appeared time.Time `json:"appeared"`

	coord    *command.Coordinator
	bridge   *bridge.Client
	auth     auth.Validator
	router   *gin.Engine
	basePath string
}

var _ node.Node = (*Server)(nil)

func Appear(id, addr string, corsOrigins []string, coord *command.Coordinator) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:       id,
		Addr:     addr,
		coord:    coord,
		router:   r,
		Appeared: time.Now(),
	}
}

func Attach(id string, router *gin.Engine, basePath string, coord *command.Coordinator) *Server {
	return &Server{
		ID:       id,
		coord:    coord,
		router:   router,
		basePath: basePath,
		Appeared: time.Now(),
	}
}

func (s *Server) NodeID() string {
	return s.ID
}

func (s *Server) Kind() string {
	return node.KindHost
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// SetBridge attaches the viewer link so status routes can report it.
func (s *Server) SetBridge(client *bridge.Client) {
	s.bridge = client
}

// SetAuth protects mutating routes with the given validator.
func (s *Server) SetAuth(v auth.Validator) {
	s.auth = v
}

func (s *Server) RegisterRoutes() {
	routes := s.routes()
	routes.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"node":    s.ID,
			"version": "0.0.1",
		})
	})

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.GET("/ready", func(c *gin.Context) {
		snap := s.coord.Snapshot()
		status := http.StatusOK
		if !snap.Ready {
			status = http.StatusServiceUnavailable
		}
		body := gin.H{
			"ready":         snap.Ready,
			"level":         int(snap.Level),
			"target_loaded": snap.TargetLoaded,
			"uptime":        time.Since(s.Appeared).String(),
			"node":          s.ID,
			"version":       "0.0.1",
		}
		if s.bridge != nil {
			body["bridge_connected"] = s.bridge.Connected()
		}
		c.JSON(status, body)
	})

	api := routes.Group("/api/v1")
	api.GET("/queue", s.handleQueueSnapshot)
	api.GET("/commands/:id", s.handleCommandStatus)

	protected := api.Group("", s.authRequired())
	protected.POST("/commands", s.handleEnqueue)
	protected.POST("/commands/execute", s.handleExecuteNow)
	protected.DELETE("/queue", s.handleClearQueue)
}

func (s *Server) Serve() error {
	s.RegisterRoutes()
	return s.router.Run(s.Addr)
}

func (s *Server) routes() gin.IRouter {
	if s.basePath == "" {
		return s.router
	}
	return s.router.Group(s.basePath)
}

func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth == nil {
			c.Next()
			return
		}
		token, err := auth.ParseBearer(c.GetHeader("Authorization"))
		if err == nil {
			err = s.auth.Validate(token)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

type enqueueRequest struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Payload       json.RawMessage `json:"payload"`
	RequiredLevel string          `json:"required_level"`
}

type executeRequest struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleEnqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	min := command.LevelImmediate
	if strings.TrimSpace(req.RequiredLevel) != "" {
		parsed, err := command.ParseLevel(req.RequiredLevel)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		min = parsed
	}

	id := s.coord.Enqueue(command.Command{
		ID:      strings.TrimSpace(req.ID),
		Name:    strings.TrimSpace(req.Name),
		Payload: req.Payload,
	}, min)
	c.JSON(http.StatusAccepted, gin.H{
		"id":             id,
		"status":         command.StatusPending,
		"required_level": min.String(),
	})
}

func (s *Server) handleExecuteNow(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	handle := s.coord.ExecuteNow(c.Request.Context(), command.Command{
		ID:      strings.TrimSpace(req.ID),
		Name:    strings.TrimSpace(req.Name),
		Payload: req.Payload,
	})
	out, err := handle.Wait(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": out})
}

func (s *Server) handleCommandStatus(c *gin.Context) {
	id := c.Param("id")
	status := s.coord.Status(id)
	if status == command.StatusNotFound {
		c.JSON(http.StatusNotFound, gin.H{"id": id, "status": status})
		return
	}
	body := gin.H{"id": id, "status": status}
	if out, ok := s.coord.OutcomeByCommandID(id); ok {
		body["outcome"] = out
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleQueueSnapshot(c *gin.Context) {
	body := gin.H{"queue": s.coord.Snapshot()}
	if s.bridge != nil {
		body["bridge"] = gin.H{
			"connected":   s.bridge.Connected(),
			"outstanding": len(s.bridge.Outstanding()),
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleClearQueue(c *gin.Context) {
	s.coord.Clear()
	log.Info().Str("node", s.ID).Msg("queue cleared via api")
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
