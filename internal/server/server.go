// Package server exposes search over a directory of dataset indexes via HTTP.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bold-kg/termdex/internal/search"
	"github.com/bold-kg/termdex/internal/telemetry"
)

// Config configures the HTTP server.
type Config struct {
	Addr string
	// IndexRoot holds one index directory per dataset.
	IndexRoot string
	// CacheSize is the number of indexes kept open.
	CacheSize int
	// GinMode is debug, release or test.
	GinMode      string
	DefaultLimit int
	AggPageSize  int
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
	// Watch drops cached indexes when their directories change.
	Watch        bool
	ReloadWindow time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8080",
		IndexRoot:       ".",
		CacheSize:       8,
		GinMode:         gin.ReleaseMode,
		DefaultLimit:    search.DefaultLimit,
		AggPageSize:     search.DefaultAggPageSize,
		ShutdownTimeout: 10 * time.Second,
		Watch:           true,
		ReloadWindow:    DefaultReloadWindow,
	}
}

// Server is the termdex HTTP server.
type Server struct {
	cfg      Config
	router   *gin.Engine
	cache    *IndexCache
	metrics  *telemetry.Metrics
	queryLog *telemetry.QueryLog
	started  time.Time
}

// New creates a server. metrics and queryLog may be nil.
func New(cfg Config, metrics *telemetry.Metrics, queryLog *telemetry.QueryLog) (*Server, error) {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = search.DefaultLimit
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	cache, err := NewIndexCache(cfg.IndexRoot, cfg.CacheSize, metrics)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		cache:    cache,
		metrics:  metrics,
		queryLog: queryLog,
		started:  time.Now(),
	}
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	if s.cfg.GinMode != "" {
		gin.SetMode(s.cfg.GinMode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger())
	s.router.Use(metricsMiddleware(s.metrics))

	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/stats", s.handleStats)
	s.router.GET("/search/:dataset", s.handleSearch)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully and closes
// every cached index.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Watch {
		w, err := NewRootWatcher(s.cfg.IndexRoot, s.cache, s.cfg.ReloadWindow)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		go w.Run(ctx)
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting",
			slog.String("addr", s.cfg.Addr),
			slog.String("index_root", s.cfg.IndexRoot))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	slog.Info("server_stopping")
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases cached indexes.
func (s *Server) Close() {
	s.cache.Close()
}
