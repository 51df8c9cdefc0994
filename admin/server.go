package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	requestid "github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/smalldave/l4lb/backend"
)

// Config configures the admin HTTP/WebSocket plane.
type Config struct {
	ListenAddress string
	ListenPort    int
}

// Server is the operator-facing observability plane: a small HTTP API
// plus a WebSocket health-event stream. It never sees proxied traffic.
type Server struct {
	cfg    Config
	pool   *backend.Pool
	stats  *Stats
	hub    *Hub
	logger *slog.Logger
	srv    *http.Server
}

// New builds a Server. The returned Server must be started with Start.
func New(cfg Config, pool *backend.Pool, stats *Stats, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, pool: pool, stats: stats, hub: hub, logger: logger}
}

type backendView struct {
	Name                 string `json:"name"`
	Address              string `json:"address"`
	Port                 int    `json:"port"`
	Weight               int    `json:"weight"`
	Healthy              bool   `json:"healthy"`
	ConsecutiveFailures  int    `json:"consecutive_failures"`
	ConsecutiveSuccesses int    `json:"consecutive_successes"`
}

func (s *Server) router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestid.New(), s.requestLogger(), s.corsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/backends", func(c *gin.Context) {
		all := s.pool.All()
		views := make([]backendView, len(all))
		for i, b := range all {
			views[i] = backendView{
				Name:                 b.Name,
				Address:              b.Address,
				Port:                 b.Port,
				Weight:               b.Weight,
				Healthy:              b.Health().IsHealthy(),
				ConsecutiveFailures:  b.Window().ConsecutiveFailures(),
				ConsecutiveSuccesses: b.Window().ConsecutiveSuccesses(),
			}
		}
		c.JSON(http.StatusOK, views)
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.stats.Snapshot())
	})

	r.GET("/events", s.hub.Handler(s.logger))

	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           24 * time.Hour,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("admin request",
			"request_id", requestid.Get(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Start runs the admin HTTP server in the background. The listener is
// bound inside that goroutine, so a bind or serve error is logged rather
// than returned; Start itself always returns nil.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ListenAddress, s.cfg.ListenPort)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("admin plane listening", "address", addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts down the WebSocket hub and the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Shutdown()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
