package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
}

// DefaultServerConfig returns the standard settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// Server is the analytics API server.
type Server struct {
	server *http.Server
	config ServerConfig
}

// NewServer assembles the mux, the forecast routes against the injected
// service, and the middleware chain. wsHandler, when non-nil, is mounted
// at /api/ws/status for the monitoring stream.
func NewServer(config ServerConfig, svc ForecastService, wsHandler http.HandlerFunc) *Server {
	mux := http.NewServeMux()

	RegisterProductHandlers(mux)
	RegisterSalesHandlers(mux)
	RegisterForecastHandlers(mux, svc)
	if wsHandler != nil {
		mux.HandleFunc("GET /api/ws/status", wsHandler)
	}

	chain := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		GzipMiddleware,
		TimeoutMiddleware(config.Timeout),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
	}
}

// Start serves until Stop or a listener error.
func (s *Server) Start() error {
	zap.S().Infow("starting http server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zap.S().Info("shutting down http server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr }
