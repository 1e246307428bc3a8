package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers curriculum routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/curriculum", func(r chi.Router) {
		r.Get("/", h.HandleGetCurriculum)
		r.Delete("/", h.HandleClear)
		r.Get("/counts", h.HandleGetCounts)

		r.Post("/lessons", h.HandleAddLesson)
		r.Delete("/lessons/{id}", h.HandleDeleteLesson)
		r.Post("/preferences", h.HandleAddPreference)
		r.Delete("/preferences/{id}", h.HandleDeletePreference)

		r.Post("/import", h.HandleImport)
		r.Get("/export", h.HandleExport)

		// Provider-assisted operations
		r.Post("/generate", h.HandleGenerate)
		r.Post("/generate/tool", h.HandleGenerateForTool)
		r.Post("/verify", h.HandleVerify)
		r.Post("/forge", h.HandleForge)
		r.Post("/rank", h.HandleRank)
	})
}

// RegisterMediaRoutes registers media synthesis. Video generation polls a
// long-running operation, so callers mount this outside short request timeouts.
func (h *Handler) RegisterMediaRoutes(r chi.Router) {
	r.Post("/curriculum/media", h.HandleSynthesizeMedia)
}
