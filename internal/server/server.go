// Package server provides the HTTP API for the knowledge service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kioku/kioku/internal/config"
	"github.com/kioku/kioku/internal/registry"
	"github.com/kioku/kioku/internal/store"
)

// Server is the HTTP server for the knowledge API.
type Server struct {
	store    *store.KnowledgeStore
	registry *registry.Registry
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ks *store.KnowledgeStore,
	reg *registry.Registry,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:    ks,
		registry: reg,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleUpload)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Post("/api/v1/knowledge-base/build", s.handleBuild)
	r.Get("/api/v1/knowledge-base/stats", s.handleStats)
	r.Delete("/api/v1/knowledge-base", s.handleClear)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
