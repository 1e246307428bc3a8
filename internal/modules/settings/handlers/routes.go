package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers configuration, settings and credential routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/config", func(r chi.Router) {
		r.Get("/", h.HandleGetConfig)
		r.Put("/", h.HandleUpdateConfig)
		r.Post("/tools", h.HandleAddTool)
		r.Delete("/tools/{id}", h.HandleRemoveTool)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Put("/{key}", h.HandleUpdate)
	})

	r.Route("/credentials", func(r chi.Router) {
		r.Get("/", h.HandleGetCredentials)
		r.Put("/", h.HandleSetCredential)
	})
}
