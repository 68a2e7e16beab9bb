// Package server sets up the minimal demonstration HTTP router: a
// health check plus one route that accepts a prompt as JSON and streams
// the canonical StreamEvent sequence back as SSE.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/llmclient/llmclient/provider"
)

// Server holds the HTTP router and the single Provider this demo
// process dispatches every request to.
type Server struct {
	router chi.Router
	prov   provider.Provider
}

// New creates a Server backed by prov, wires up routes and middleware,
// and returns it ready to use as an http.Handler.
func New(prov provider.Provider) *Server {
	s := &Server{prov: prov}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions.
func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/v1/complete", s.handleComplete)

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
