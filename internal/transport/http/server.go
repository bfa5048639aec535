package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshdurbin/newsfeed/internal/config"
	"github.com/joshdurbin/newsfeed/internal/service"
)

// Server represents the fixture HTTP server
type Server struct {
	handler http.Handler
	server  *http.Server
	port    string
}

// NewServer creates a new HTTP server for feed. A nil reg gets a fresh
// registry, which is what /metrics exposes.
func NewServer(feed service.FeedService, cfg config.ServerConfig, verbose bool, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	handler := NewHandler(feed, cfg.FixtureDir)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /feed", handler.Feed)
	mux.HandleFunc("GET /posts/{id}", handler.GetPost)
	mux.HandleFunc("POST /posts", handler.CreatePost)
	mux.HandleFunc("POST /posts/{id}/interact", handler.Interact)
	mux.HandleFunc("GET /media/{name}", handler.Media)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// innermost first
	chain := []Middleware{
		newServerMetrics(reg).Middleware,
		TracingMiddleware,
		FaultInjector{Rate: cfg.FailRate, Status: cfg.FailStatus, Latency: cfg.Latency}.Middleware,
	}
	if verbose {
		chain = append(chain, LoggingMiddleware)
	}

	var final http.Handler = mux
	for _, mw := range chain {
		final = mw(final)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      final,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		handler: final,
		server:  server,
		port:    cfg.Port,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Fixture server starting on port %s", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Fixture server shutting down...")
	return s.server.Shutdown(ctx)
}

// Port returns the server port
func (s *Server) Port() string {
	return s.port
}

// Handler returns the full middleware chain, for httptest
func (s *Server) Handler() http.Handler {
	return s.handler
}
