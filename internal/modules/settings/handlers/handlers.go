// Package handlers provides HTTP handlers for configuration, studio settings and credentials.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// DefaultProvider is the credential slot used when a request names none
const DefaultProvider = "gemini"

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service     *settings.Service
	credentials *settings.Credentials
	log         zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service *settings.Service, credentials *settings.Credentials, log zerolog.Logger) *Handler {
	return &Handler{
		service:     service,
		credentials: credentials,
		log:         log.With().Str("handler", "settings").Logger(),
	}
}

// HandleGetConfig handles GET /api/config
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfig()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get training configuration")
		h.writeError(w, http.StatusInternalServerError, "Failed to get configuration")
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// HandleUpdateConfig handles PUT /api/config
func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.service.UpdateConfig(cfg)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to update training configuration")
		h.writeError(w, http.StatusInternalServerError, "Failed to update configuration")
		return
	}
	h.writeJSON(w, http.StatusOK, saved)
}

// HandleAddTool handles POST /api/config/tools
func (h *Handler) HandleAddTool(w http.ResponseWriter, r *http.Request) {
	var tool domain.ToolDefinition
	if err := json.NewDecoder(r.Body).Decode(&tool); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	added, err := h.service.AddTool(tool)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to add tool")
		h.writeError(w, http.StatusInternalServerError, "Failed to add tool")
		return
	}
	h.writeJSON(w, http.StatusCreated, added)
}

// HandleRemoveTool handles DELETE /api/config/tools/{id}
func (h *Handler) HandleRemoveTool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.RemoveTool(id); err != nil {
		if errors.Is(err, settings.ErrToolNotFound) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("Failed to remove tool")
		h.writeError(w, http.StatusInternalServerError, "Failed to remove tool")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get all settings")
		h.writeError(w, http.StatusInternalServerError, "Failed to get settings")
		return
	}
	h.writeJSON(w, http.StatusOK, all)
}

// HandleUpdate handles PUT /api/settings/{key}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var update settings.SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Set(key, update.Value); err != nil {
		switch {
		case errors.Is(err, settings.ErrUnknownSetting):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, settings.ErrInvalidValue):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.Error().Err(err).Str("key", key).Msg("Failed to update setting")
			h.writeError(w, http.StatusInternalServerError, "Failed to update setting")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": update.Value})
}

// credentialRequest is the body of PUT /api/credentials
type credentialRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

// HandleSetCredential handles PUT /api/credentials.
// The key is held in memory only; an empty key clears it.
func (h *Handler) HandleSetCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = DefaultProvider
	}

	h.credentials.Set(provider, req.APIKey)
	h.log.Info().Str("provider", provider).Bool("cleared", strings.TrimSpace(req.APIKey) == "").Msg("Credential updated")

	h.writeJSON(w, http.StatusOK, h.credentials.Status())
}

// HandleGetCredentials handles GET /api/credentials with masked keys
func (h *Handler) HandleGetCredentials(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.credentials.Status())
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
