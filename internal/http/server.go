// Package http provides the HTTP server and API surface for convarr.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/convarr/convarr/internal/config"
	"github.com/convarr/convarr/internal/convert"
	"github.com/convarr/convarr/internal/engine"
	"github.com/convarr/convarr/internal/gate"
	"github.com/convarr/convarr/internal/http/handlers"
	"github.com/convarr/convarr/internal/http/middleware"
	"github.com/convarr/convarr/internal/resource"
)

// Server is the convarr HTTP server.
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the HTTP server with its middleware chain and API.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	// the synchronous convert route blocks for the whole engine run
	router.Use(middleware.NoWriteTimeout("/api/v1/convert"))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("convarr API", version)
	humaConfig.Info.Description = "File format conversion API: image, video, audio, and ebook"

	api := humachi.New(router, humaConfig)

	return &Server{
		config: cfg,
		router: router,
		api:    api,
		logger: logger.With("component", "http"),
	}
}

// RegisterRoutes wires all API handlers.
func (s *Server) RegisterRoutes(
	orchestrator *convert.Orchestrator,
	monitor *resource.Monitor,
	engines *engine.Set,
	g *gate.Gate,
	version string,
) {
	handlers.NewConvertHandler(orchestrator).Register(s.api)
	handlers.NewJobHandler(orchestrator).Register(s.api)
	handlers.NewFormatHandler().Register(s.api)
	handlers.NewHealthHandler(version, monitor, engines, g).Register(s.api)
}

// API returns the Huma API instance for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the chi router for additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}

	s.logger.Info("starting HTTP server", slog.String("address", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
