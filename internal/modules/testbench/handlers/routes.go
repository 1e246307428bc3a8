package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers test bench routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/testbench", func(r chi.Router) {
		r.Get("/", h.HandleStatus)
		r.Post("/chat", h.HandleChat)
	})
}
