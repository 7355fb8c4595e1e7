package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/metrics"
	"portfolio-stream/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// HTTPServer
// -----------------------------------------------------------------------------

// HTTPServer serves the /ws transport plus the health, stats and metrics
// routes.
type HTTPServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	engine  *gin.Engine
	server  *http.Server
	stream  interfaces.IStreamService
	metrics *metrics.Metrics

	upgrader  websocket.Upgrader
	origins   map[string]struct{}
	anyOrigin bool
	startedAt time.Time
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewHTTPServer(cfg *models.MConfig, svc interfaces.IStreamService, m *metrics.Metrics, log *logger.Logger) *HTTPServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &HTTPServer{
		Config:    cfg,
		Logger:    log,
		engine:    gin.New(),
		stream:    svc,
		metrics:   m,
		origins:   make(map[string]struct{}),
		startedAt: time.Now(),
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			s.anyOrigin = true
		}
		s.origins[o] = struct{}{}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), s.cors())
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *HTTPServer) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *HTTPServer) originAllowed(origin string) bool {
	if s.anyOrigin {
		return true
	}
	_, ok := s.origins[origin]
	return ok
}

// Non-browser clients send no Origin header.
func (s *HTTPServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.originAllowed(origin)
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *HTTPServer) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/websocket-stats", s.getStats)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *HTTPServer) Start() error {
	s.Logger.Info("Starting HTTP server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop stops accepting requests. Hijacked WebSocket connections are not
// tracked by http.Server; the stream service closes those.
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *HTTPServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.stream.Stats().TotalConnections,
		"uptime":      int64(time.Since(s.startedAt).Seconds()),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stream.Stats())
}
