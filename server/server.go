// Package server exposes the listing and detail stores over a JSON HTTP API.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/anime-corsair/state"
)

// Options holds optional configuration for the Server.
type Options struct {
	// Gatherer backs GET /metrics. The endpoint is not registered when nil.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server is the HTTP front of the stores.
type Server struct {
	router *mux.Router
	query  *state.QueryStore
	detail *state.DetailStore
	logger *slog.Logger
	opts   Options
}

// New wires routes for the given stores.
func New(query *state.QueryStore, detail *state.DetailStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: mux.NewRouter(),
		query:  query,
		detail: detail,
		logger: logger,
		opts:   opts,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler, delegating to the mux router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Routes are registered on the root router so a method mismatch answers
	// 405; a PathPrefix subrouter reports it as 404.

	// Listing
	r.HandleFunc("/api/listing", s.handleListing).Methods(http.MethodGet)
	r.HandleFunc("/api/listing", s.handleClearListing).Methods(http.MethodDelete)
	r.HandleFunc("/api/listing/page", s.handleListingPage).Methods(http.MethodPost)
	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/api/top", s.handleTop).Methods(http.MethodPost)

	// Detail
	r.HandleFunc("/api/anime", s.handleDetail).Methods(http.MethodGet)
	r.HandleFunc("/api/anime", s.handleClearDetail).Methods(http.MethodDelete)
	r.HandleFunc("/api/anime/{id:[0-9]+}", s.handleLoadDetail).Methods(http.MethodPost)

	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("query", r.URL.RawQuery),
		)
		next.ServeHTTP(w, r)
	})
}
