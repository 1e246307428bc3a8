// Package handlers provides HTTP handlers for the test bench.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/llamaforge/internal/clients/gemini"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/aristath/llamaforge/internal/modules/testbench"
	"github.com/rs/zerolog"
)

// maxChatBytes bounds a chat body; images arrive as data URIs
const maxChatBytes = 16 << 20

// Handler provides HTTP handlers for test bench endpoints
type Handler struct {
	service *testbench.Service
	log     zerolog.Logger
}

// NewHandler creates a new test bench handler
func NewHandler(service *testbench.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "testbench").Logger(),
	}
}

// HandleStatus handles GET /api/testbench
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read test bench status")
		h.writeError(w, http.StatusInternalServerError, "Failed to read test bench status")
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// HandleChat handles POST /api/testbench/chat
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req testbench.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.service.Chat(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, testbench.ErrLocked):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, testbench.ErrEmptyMessage),
		errors.Is(err, gemini.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, settings.ErrMissingCredential),
		errors.Is(err, gemini.ErrMissingCredential):
		h.writeError(w, http.StatusPreconditionFailed, "Provider API key not configured")
	case errors.Is(err, gemini.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, gemini.ErrUnauthorized),
		errors.Is(err, gemini.ErrInvalidResponse),
		errors.Is(err, gemini.ErrTimeout):
		h.log.Warn().Err(err).Msg("Test bench chat failed")
		h.writeError(w, http.StatusBadGateway, "Could not reach the model under test")
	default:
		h.log.Error().Err(err).Msg("Test bench chat failed")
		h.writeError(w, http.StatusInternalServerError, "Test bench chat failed")
	}
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
