package monitoring

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/logging"
)

// DefaultAddr is used when monitoring.addr is not configured.
const DefaultAddr = "127.0.0.1:9100"

// ServerConfig controls the monitoring HTTP endpoint.
type ServerConfig struct {
	Addr string
}

// Server serves /metrics and /healthz.
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	listener   net.Listener
	logger     logging.Logger
}

// NewServer wires the metrics registry and health monitor into an HTTP
// server. The server does not listen until Start is called.
func NewServer(cfg ServerConfig, metrics *Metrics, health *HealthMonitor, logger logging.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health.HTTPHandler())

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.WithComponent("monitoring"),
	}
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeInternalError,
			"failed to bind monitoring address "+s.config.Addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error(context.Background(), err, "Monitoring server stopped unexpectedly")
		}
	}()

	s.logger.Info(ctx, "Monitoring server listening", "addr", s.Addr())
	return nil
}

// Addr returns the bound address, useful when the configured port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
