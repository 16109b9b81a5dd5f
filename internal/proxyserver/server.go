// Package proxyserver wires the catalog, flow correlator, and event
// store into the dashboard's HTTP query surface, plus health and
// Prometheus metrics endpoints.
package proxyserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/store"
)

// Server holds the HTTP router and all dependencies the dashboard
// handlers need.
type Server struct {
	router     chi.Router
	store      *store.Store
	catalog    *catalog.Catalog
	adminToken string
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler.
func New(st *store.Store, cat *catalog.Catalog, adminToken string) *Server {
	s := &Server{store: st, catalog: cat, adminToken: adminToken}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/events", s.handleListEvents)
	r.Get("/api/events/{id}", s.handleGetEvent)
	r.With(s.requireAdmin).Delete("/api/events/all", s.handleDeleteAllEvents)

	r.Get("/api/stats/summary", s.handleStatsSummary)
	r.Get("/api/stats/by-model", s.handleStatsByModel)
	r.Get("/api/stats/by-program", s.handleStatsByProgram)
	r.Get("/api/stats/by-project", s.handleStatsByProject)
	r.Get("/api/stats/over-time", s.handleStatsOverTime)
	r.Get("/api/stats/by-device", s.handleStatsByDevice)

	r.Get("/api/devices", s.handleListDevices)
	r.Post("/api/devices/{id}/rename", s.handleRenameDevice)
	r.With(s.requireAdmin).Delete("/api/devices/{id}", s.handleDeleteDevice)

	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requireAdmin gates destructive routes behind the configured
// X-Admin-Token header, matching the per-install token generated by
// LoadOrCreateAdminToken.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if s.adminToken == "" || token != s.adminToken {
			writeError(w, http.StatusForbidden, "missing or invalid X-Admin-Token header")
			return
		}
		next.ServeHTTP(w, r)
	})
}
