package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers export routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/export", func(r chi.Router) {
		r.Get("/modelfile", h.HandleModelfile)
		r.Get("/snippet", h.HandleSnippet)
		r.Get("/manifest", h.HandleManifest)
	})
}
