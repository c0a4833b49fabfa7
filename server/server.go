// Package server is the embedded HTTP server exposing health, metrics and
// introspection of a running bot.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intrntsrfr/cosmos/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type StageReport struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Provides string        `json:"provides"`
	Duration time.Duration `json:"duration_ns"`
}

type CommandInfo struct {
	Name        string   `json:"name"`
	Plugin      string   `json:"plugin"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description"`
	Inescapable bool     `json:"inescapable"`
	Prime       bool     `json:"prime"`
	Disabled    bool     `json:"disabled"`
}

// Provider is the bot as seen by the server.
type Provider interface {
	Ready() bool
	Release() string
	Uptime() string
	StageReports() []StageReport
	CommandInfo() []CommandInfo
}

type Server struct {
	cfg      config.Server
	log      *zap.Logger
	provider Provider
	engine   *gin.Engine

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New builds the router. A nil gatherer serves the default prometheus
// registry.
func New(cfg config.Server, log *zap.Logger, p Provider, g prometheus.Gatherer) (*Server, error) {
	if log == nil {
		return nil, errors.New("server: logger is required")
	}
	if p == nil {
		return nil, errors.New("server: provider is required")
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:      cfg,
		log:      log.Named("server"),
		provider: p,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	api := s.engine.Group("/api")
	api.GET("/stages", s.stages)
	api.GET("/commands", s.commands)

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	status := http.StatusOK
	state := "ok"
	if !s.provider.Ready() {
		status, state = http.StatusServiceUnavailable, "starting"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"release": s.provider.Release(),
		"uptime":  s.provider.Uptime(),
	})
}

func (s *Server) stages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": s.provider.StageReports()})
}

func (s *Server) commands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commands": s.provider.CommandInfo()})
}

// Start listens on the configured address and serves in the background
// until ctx is done or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	srv := s.srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()

	s.log.Info("server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	return srv.Shutdown(ctx)
}
