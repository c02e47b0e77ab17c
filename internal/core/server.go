package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultRequestTimeout is the soft deadline applied to request contexts. It
// sits above the sweep budget so a scheduled reset can return its summary
// before the context is cancelled.
const defaultRequestTimeout = 55 * time.Second

// RouteRegistrar mounts a handler group onto the router. Populated by the
// application entry point; the indirection avoids an import cycle between
// core and the handler packages.
type RouteRegistrar func(chi.Router)

// Server encapsulates the router and cross-cutting dependencies, allowing
// injection during testing.
type Server struct {
	Logger *slog.Logger

	// RouteRegistrars are mounted at the router root by MountRoutes.
	RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer prepares the server for route mounting. The caller mounts routes
// via MountRoutes after registering handlers.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountRoutes registers the global middleware chain, the registered handler
// groups, and the operational endpoints.
//
// Middleware order matters: Recoverer is outermost so every panic is caught;
// the request ID must exist before logging; metrics run innermost so the
// path label reflects the matched route.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(MetricsMiddleware)

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// ContextTimeoutMiddleware sets a deadline on the request context so a stuck
// downstream call cannot hold a connection open indefinitely.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HandleHealth reports process liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "cappychat",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Shutdown performs graceful termination of server-held resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
