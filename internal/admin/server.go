// Package admin serves the optional operator HTTP surface: health, metrics
// and the websocket state feed.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/geordon/internal/logging"
	"github.com/danmuck/geordon/internal/observability"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	// ListenAddr disables the surface when empty.
	ListenAddr  string
	CORSOrigins []string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.ListenAddr) != ""
}

type Server struct {
	cfg     Config
	router  *gin.Engine
	feed    http.Handler
	started time.Time
	remote  string
}

// New builds the router. feed may be nil, in which case /feed answers 404.
func New(cfg Config, remote string, feed http.Handler) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		router:  r,
		feed:    feed,
		started: time.Now(),
		remote:  remote,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"uptime":     time.Since(s.started).String(),
			"component":  "geordon",
			"controller": s.remote,
			"feed":       s.feed != nil,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/feed", func(c *gin.Context) {
		if s.feed == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "feed disabled"})
			return
		}
		s.feed.ServeHTTP(c.Writer, c.Request)
	})
}

// Serve listens on ListenAddr until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logging.Infof("admin: listening addr=%s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
