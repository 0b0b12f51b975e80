// Package server exposes the extraction pipeline over HTTP.
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

	"github.com/docpin/docpin/internal/config"
	"github.com/docpin/docpin/internal/localllm"
	"github.com/docpin/docpin/internal/querytypes"
)

// Server is the main docpin HTTP server. When configured to manage the local
// inference container it starts the container on server start and stops it
// on shutdown.
type Server struct {
	httpServer    *http.Server
	configMgr     *config.Manager
	registry      *querytypes.Registry
	ollamaManager *localllm.DockerManager
	store         *documentStore
	logger        *slog.Logger

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Registry is the query type registry (default: built-in types)
	Registry *querytypes.Registry
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	registry := cfg.Registry
	if registry == nil {
		var err error
		registry, err = querytypes.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load query types: %w", err)
		}
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		registry:  registry,
		store:     newDocumentStore(),
		logger:    cfg.Logger,
	}

	appCfg := cfg.ConfigManager.Get()
	if appCfg.Ollama.Manage {
		manager, err := localllm.NewDockerManager(localllm.DockerConfig{
			ContainerName: appCfg.Ollama.ContainerName,
			Image:         appCfg.Ollama.Image,
			HostPort:      appCfg.Ollama.Port,
			ModelsPath:    appCfg.Ollama.ModelsPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama manager: %w", err)
		}
		s.ollamaManager = manager
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Minute, // uploads and extraction calls are slow
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and, when managed, the local inference container.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.ollamaManager != nil {
		s.logger.Info("starting local inference container")
		if err := s.ollamaManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start inference container: %w", err)
		}
		s.logger.Info("inference container ready", "url", s.ollamaManager.URL())
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the managed
// container, if any.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.ollamaManager != nil {
		s.logger.Info("stopping inference container")
		if err := s.ollamaManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("inference container stop error", "error", err)
		}
		if err := s.ollamaManager.Close(); err != nil {
			s.logger.Error("inference manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
