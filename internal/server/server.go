package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/wireprobe/internal/node"
	"github.com/danmuck/wireprobe/internal/observability"
	"github.com/danmuck/wireprobe/internal/probes"
)

const Version = "0.1.0"

// Config is the HTTP surface of a probe node.
type Config struct {
	NodeID          string
	ListenAddr      string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		NodeID:          "wireprobe",
		ListenAddr:      ":9040",
		CORSOrigins:     []string{"http://localhost:3000"},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server is the probe node: ambient endpoints plus one route group per
// registered probe module under /api/<module>.
type Server struct {
	ID       string
	Addr     string
	Appeared time.Time
	Registry *probes.Registry

	cfg    Config
	log    zerolog.Logger
	router *gin.Engine
}

var _ node.Node = (*Server)(nil)

func Appear(cfg Config, registry *probes.Registry, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	if registry == nil {
		registry = probes.NewRegistry()
	}
	id := strings.TrimSpace(cfg.NodeID)
	if id == "" {
		id = DefaultConfig().NodeID
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:       id,
		Addr:     cfg.ListenAddr,
		Appeared: time.Now(),
		Registry: registry,
		cfg:      cfg,
		log:      logger,
		router:   r,
	}
}

func (s *Server) NodeID() string {
	return s.ID
}

func (s *Server) Kind() string {
	return "probe"
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// RegisterRoutes mounts the ambient endpoints and every module known to
// the registry at call time.
func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		modules := s.Registry.List()
		c.JSON(http.StatusOK, gin.H{
			"ready":   len(modules) > 0,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	s.router.GET("/modules", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"modules": s.Registry.List()})
	})

	for name, m := range s.Registry.All() {
		m.RegisterRoutes(s.router.Group("/api/" + name))
		s.log.Info().Str("module", name).Strs("operations", m.Operations()).Msg("module mounted")
	}
}

// Serve runs the HTTP listener until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Addr).Str("node", s.ID).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return DefaultConfig().CORSOrigins
	}
	return out
}
