// Package adminhttp serves health, readiness, and metrics endpoints
// alongside the batch pipeline, for operators and orchestrators (spec.md §7
// ambient stack; the core spec is otherwise a batch job with no public API).
//
// Grounded directly on tinoosan-ledger's internal/httpapi/v1/router.go
// (chi.Mux + RequestID/recoverer middleware) and aux_endpoints.go
// (healthz/readyz handlers backed by a Ready(ctx) check on the underlying
// stores), with metrics.go's promhttp.Handler wiring reused as-is.
package adminhttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyChecker is implemented by any collaborator whose connectivity should
// gate /readyz (the ledger SQL reader and the feed cache store, typically).
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Server is the admin HTTP surface. It does not serve any domain traffic;
// Checks are consulted by /readyz in order, short-circuiting on the first
// failure.
type Server struct {
	Checks []ReadyChecker
	Logger *slog.Logger

	rt *chi.Mux
}

// New builds the router and attaches middleware.
func New(logger *slog.Logger, checks ...ReadyChecker) *Server {
	s := &Server{Checks: checks, Logger: logger}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())
	s.rt = r
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	for _, check := range s.Checks {
		if check == nil {
			continue
		}
		if err := check.Ready(ctx); err != nil {
			s.Logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
