// Package api exposes the daemon's control surface over HTTP: health
// probes, worker status, the interception boundary, and the typed control
// message channel used by pages and wirecachectl.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/wirecache/wirecache/internal/logger"
	"github.com/wirecache/wirecache/pkg/worker"
)

// Server provides the HTTP server for the control API.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//   - GET /v1/status: Worker status
//   - POST /v1/message: Control message channel
//   - POST /v1/fetch: Interception boundary
//   - POST /v1/replay: Drain the offline write queue
//   - PUT /v1/offline: Connectivity toggle
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates the control API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
//
// When the config carries an auth secret, the /v1 routes require a bearer
// token issued by the matching TokenService; health probes stay open.
func NewServer(config Config, w *worker.Worker) (*Server, error) {
	config.applyDefaults()

	var tokens *TokenService
	if config.AuthEnabled() {
		var err error
		tokens, err = NewTokenService(config.AuthSecret, config.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid API auth config: %w", err)
		}
	}

	router := NewRouter(w, config, tokens)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil on success.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port, "auth", s.config.AuthEnabled())

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.Err(err))
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
