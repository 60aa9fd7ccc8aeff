package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aussiebroadwan/aula/internal/mockapi"
	"github.com/aussiebroadwan/aula/pkg/metrics"
)

// DevServerConfig configures the local fake backend.
type DevServerConfig struct {
	Addr                string
	AccessTTL           time.Duration
	ShutdownGracePeriod time.Duration
}

// DevServer serves the in-memory backend with demo fixtures, plus /metrics.
type DevServer struct {
	cfg      DevServerConfig
	logger   *slog.Logger
	backend  *mockapi.Backend
	server   *http.Server
	listener net.Listener
}

// NewDevServer builds the backend and binds the listen address.
func NewDevServer(cfg DevServerConfig, logger *slog.Logger) (*DevServer, error) {
	if cfg.ShutdownGracePeriod <= 0 {
		cfg.ShutdownGracePeriod = 10 * time.Second
	}

	backend, err := mockapi.New(mockapi.Config{
		AccessTTL:    cfg.AccessTTL,
		Logger:       logger,
		SeedFixtures: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/", backend)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	return &DevServer{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		listener: ln,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 3 * time.Second,
		},
	}, nil
}

// URL is the base URL clients should use.
func (s *DevServer) URL() string { return "http://" + s.listener.Addr().String() }

// Backend exposes the fake API, e.g. to push notifications.
func (s *DevServer) Backend() *mockapi.Backend { return s.backend }

// Run serves until ctx is done, then shuts down gracefully.
func (s *DevServer) Run(ctx context.Context) error {
	s.logger.Info("dev server starting", "url", s.URL())

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down dev server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("graceful server shutdown failed", "error", err)
		if err := s.server.Close(); err != nil {
			s.logger.Error("error closing server", "error", err)
		}
		return err
	}

	s.logger.Info("dev server stopped")
	return nil
}
