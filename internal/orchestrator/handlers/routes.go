package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers run control and version routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/training", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/metrics", h.HandleMetrics)
		r.Get("/metrics/summary", h.HandleMetricsSummary)
		r.Get("/logs", h.HandleLogs)

		r.Post("/start", h.HandleStart)
		r.Post("/interrupt", h.HandleInterrupt)
		r.Post("/resume", h.HandleResume)
	})

	r.Route("/versions", func(r chi.Router) {
		r.Get("/", h.HandleListVersions)
		r.Post("/", h.HandleCaptureVersion)
		r.Get("/{id}", h.HandleGetVersion)
		r.Delete("/{id}", h.HandleDeleteVersion)
		r.Post("/{id}/restore", h.HandleRestoreVersion)
		r.Post("/{id}/archive", h.HandleArchiveVersion)
	})
}
