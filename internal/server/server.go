// Package server implements the HTTP servers for health checks, metrics and
// event ingestion.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jittakal/logship/pkg/source"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	GetStatus() map[string]string
}

// Config holds listen addresses. An empty address disables that server.
type Config struct {
	HealthAddr  string
	MetricsAddr string
	// MaxIngestBytes bounds one ingest request body; zero uses DefaultMaxIngestBytes.
	MaxIngestBytes int64
}

// Validate checks that enabled servers do not share an address.
func (c Config) Validate() error {
	if c.HealthAddr != "" && c.HealthAddr == c.MetricsAddr {
		return fmt.Errorf("health and metrics servers cannot share address %s", c.HealthAddr)
	}
	return nil
}

type namedServer struct {
	name string
	srv  *http.Server
	addr net.Addr
}

// Server represents the HTTP servers for health, ingestion and metrics.
type Server struct {
	mu      sync.Mutex
	servers []*namedServer
	logger  *slog.Logger
}

// NewServer creates the HTTP servers. The ingest endpoint is mounted on the
// health server when recorder is not nil.
func NewServer(
	cfg Config,
	healthChecker HealthChecker,
	recorder source.Recorder,
	registry *prometheus.Registry,
	logger *slog.Logger,
) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger}

	if cfg.HealthAddr != "" {
		healthMux := http.NewServeMux()
		healthMux.HandleFunc("GET /health/live", LivenessHandler(healthChecker, logger))
		healthMux.HandleFunc("GET /health/ready", ReadinessHandler(healthChecker, logger))
		if recorder != nil {
			healthMux.Handle("POST /v1/logs", IngestHandler(recorder, cfg.MaxIngestBytes, logger))
		}
		s.servers = append(s.servers, &namedServer{name: "health", srv: newHTTPServer(cfg.HealthAddr, healthMux)})
	}

	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		s.servers = append(s.servers, &namedServer{name: "metrics", srv: newHTTPServer(cfg.MetricsAddr, metricsMux)})
	}

	return s, nil
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Start binds every server and serves in the background. Bind errors are
// returned so a misconfigured port fails startup.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ns := range s.servers {
		ln, err := net.Listen("tcp", ns.srv.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen for %s server on %s: %w", ns.name, ns.srv.Addr, err)
		}
		ns.addr = ln.Addr()

		go func(ns *namedServer, ln net.Listener) {
			s.logger.Info("starting "+ns.name+" server", "addr", ln.Addr().String())
			if err := ns.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error(ns.name+" server failed", "error", err)
			}
		}(ns, ln)
	}
	return nil
}

// Addr returns the bound address of the named server ("health" or "metrics"),
// or nil when it is disabled or not started.
func (s *Server) Addr(name string) net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ns := range s.servers {
		if ns.name == name {
			return ns.addr
		}
	}
	return nil
}

// Shutdown gracefully shuts down all servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	errChan := make(chan error, len(s.servers))
	for _, ns := range s.servers {
		go func(srv *http.Server) {
			errChan <- srv.Shutdown(ctx)
		}(ns.srv)
	}

	var lastErr error
	for range s.servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			lastErr = err
		}
	}

	return lastErr
}
