// Package api - Thin HTTP layer over the carrier registry.
// The API is ONLY responsible for request decoding, calling the registry or
// quote calculator, and response serialization. It never performs rate math.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"carrier-tariff/core/carrier"
	"carrier-tariff/core/quote"
)

// Server is the API server
type Server struct {
	handler *Handler
	router  http.Handler
}

// NewServer creates a server for the carriers in registry
func NewServer(registry *carrier.Registry, quotes *quote.Calculator, version string) *Server {
	h := NewHandler(registry, quotes, version)
	return &Server{handler: h, router: NewRouter(h)}
}

// NewRouter registers all API routes
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(recoverMiddleware)

	r.Get("/healthz", h.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/carriers", h.listCarriers)
		r.Get("/carriers/{carrier}", h.getCarrier)
		r.Get("/carriers/{carrier}/rate", h.resolveRate)
		r.Post("/carriers/{carrier}/reload", h.reloadCarrier)
		r.Post("/quotes", h.createQuote)
	})
	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
