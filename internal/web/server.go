// Package web provides the HTTP API for triggering and monitoring
// dataset imports.
package web

import (
	"context"
	"net/http"

	"github.com/civiclab/socrata-import/internal/config"
	"github.com/civiclab/socrata-import/internal/importer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Authorize decides whether a request may trigger or inspect imports.
// A nil Authorize admits everything; deployments behind an
// authenticating proxy typically leave it nil.
type Authorize func(r *http.Request) bool

// Server is the HTTP server for the import API.
type Server struct {
	service   *importer.Service
	cfg       config.ServerConfig
	authorize Authorize
	router    *chi.Mux
	server    *http.Server
}

// NewServer wires the router, middleware and handlers.
func NewServer(service *importer.Service, cfg config.ServerConfig, authorize Authorize) *Server {
	s := &Server{
		service:   service,
		cfg:       cfg,
		authorize: authorize,
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuthorized)

		r.Post("/imports", s.handleStartImport)
		r.Get("/imports", s.handleListImports)
		r.Get("/imports/{datasetID}", s.handleGetImport)
		r.Post("/imports/preview", s.handlePreview)
	})
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.server = s.httpServer()
	return s.server.ListenAndServe()
}

// httpServer builds the listener from the server configuration.
func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requireAuthorized gates the API routes behind the configured
// authorization check.
func (s *Server) requireAuthorized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authorize != nil && !s.authorize(r) {
			respondJSON(w, http.StatusForbidden, ErrorResponse{
				Error: "you do not have permission to manage imports",
				Kind:  "forbidden",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
