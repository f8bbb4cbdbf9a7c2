package app

import (
	"context"
	"fmt"
	"net/http"

	"pr-review-service/internal/app/middleware"
	"pr-review-service/internal/config"
	"pr-review-service/internal/handler"

	"go.uber.org/zap"
)

// Server wraps http.Server for the application.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with configured routes and middleware.
func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	teamHandler *handler.TeamHandler,
	userHandler *handler.UserHandler,
	prHandler *handler.PRHandler,
	healthHandler *handler.HealthHandler,
	docsHandler *handler.DocsHandler,
	statsHandler *handler.StatsHandler,
) *Server {
	mux := http.NewServeMux()

	// Team routes
	mux.HandleFunc("POST /team/add", teamHandler.AddTeam)
	mux.HandleFunc("GET /team/get", teamHandler.GetTeam)
	mux.HandleFunc("POST /team/bulkDeactivate", teamHandler.BulkDeactivate)

	// User routes
	mux.HandleFunc("POST /users/setIsActive", userHandler.SetIsActive)
	mux.HandleFunc("GET /users/getReview", userHandler.GetReview)

	// PR routes
	mux.HandleFunc("POST /pullRequest/create", prHandler.CreatePR)
	mux.HandleFunc("POST /pullRequest/merge", prHandler.MergePR)
	mux.HandleFunc("POST /pullRequest/reassign", prHandler.ReassignReviewer)

	// Stats routes
	mux.HandleFunc("GET /stats/assignments", statsHandler.GetAssignmentStats)

	// Health route
	mux.HandleFunc("GET /health", healthHandler.Check)

	// Documentation routes
	mux.HandleFunc("GET /docs", docsHandler.ServeSwaggerUI)
	mux.HandleFunc("GET /openapi.yml", docsHandler.ServeOpenAPI)

	// Middleware chain: Recovery → Logging
	var h http.Handler = mux
	h = middleware.Logging(log)(h)
	h = middleware.Recovery(log)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		logger:     log,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
