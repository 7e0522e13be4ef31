// Package server provides the HTTP query API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/internal/config"
)

// Searcher is the part of *vecsearch.Searcher the server queries.
type Searcher interface {
	SearchText(ctx context.Context, query string, clusterTopn, topn int) ([]vecsearch.Hit, error)
	SearchTextFiltered(ctx context.Context, query, keywords string, clusterTopn, topn int) ([]vecsearch.Hit, error)
	Len() int
}

// Collection is a named searcher with the names of its TAB-separated
// text columns.
type Collection struct {
	Name       string
	FieldNames []string
	Searcher   Searcher
}

// Server is the HTTP server of the search API.
type Server struct {
	cfg         config.ServerConfig
	collections map[string]Collection
	fallback    string
	logger      *slog.Logger
	registry    *prometheus.Registry
	metrics     *httpMetrics
	server      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry serves and records metrics in reg instead of a private
// registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// New creates a server over collections. The first collection answers
// /search.
func New(cfg config.ServerConfig, collections []Collection, opts ...Option) (*Server, error) {
	if len(collections) == 0 {
		return nil, errors.New("server: no collections")
	}

	s := &Server{
		cfg:         cfg,
		collections: make(map[string]Collection, len(collections)),
		fallback:    collections[0].Name,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	for _, c := range collections {
		if _, dup := s.collections[c.Name]; dup {
			return nil, fmt.Errorf("server: duplicate collection %q", c.Name)
		}
		s.collections[c.Name] = c
	}

	m, err := newHTTPMetrics(s.registry)
	if err != nil {
		return nil, err
	}
	s.metrics = m

	return s, nil
}

// Registry returns the registry /metrics serves.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/search", s.handleSearch)
	r.Get("/collections/{name}/search", s.handleSearch)

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
