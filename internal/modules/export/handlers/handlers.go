// Package handlers provides HTTP handlers for deployment exports.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/llamaforge/internal/modules/export"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for export endpoints
type Handler struct {
	service *export.Service
	log     zerolog.Logger
}

// NewHandler creates a new export handler
func NewHandler(service *export.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "export").Logger(),
	}
}

// HandleModelfile handles GET /api/export/modelfile.
// With ?format=text the Modelfile is returned as a download.
func (h *Handler) HandleModelfile(w http.ResponseWriter, r *http.Request) {
	mf, err := h.service.Modelfile(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render Modelfile")
		h.writeError(w, http.StatusInternalServerError, "Failed to render Modelfile")
		return
	}

	if r.URL.Query().Get("format") == "text" {
		h.writeText(w, "Modelfile", mf.Content)
		return
	}
	h.writeJSON(w, http.StatusOK, mf)
}

// HandleSnippet handles GET /api/export/snippet
func (h *Handler) HandleSnippet(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.service.Snippet()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render snippet")
		h.writeError(w, http.StatusInternalServerError, "Failed to render snippet")
		return
	}
	h.writeText(w, "inference.py", snippet)
}

// HandleManifest handles GET /api/export/manifest
func (h *Handler) HandleManifest(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.service.Manifest(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render manifest")
		h.writeError(w, http.StatusInternalServerError, "Failed to render manifest")
		return
	}
	h.writeJSON(w, http.StatusOK, manifest)
}

func (h *Handler) writeText(w http.ResponseWriter, filename, content string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
