// Package handlers provides HTTP handlers for run control and model versions.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/training"
	"github.com/aristath/llamaforge/internal/modules/versions"
	"github.com/aristath/llamaforge/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for training and version endpoints
type Handler struct {
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

// NewHandler creates a new training handler
func NewHandler(orch *orchestrator.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		orch: orch,
		log:  log.With().Str("handler", "training").Logger(),
	}
}

// CommandResponse is returned by run commands. Applied is false when the command
// had no transition from the current status.
type CommandResponse struct {
	Applied bool          `json:"applied"`
	Info    training.Info `json:"info"`
	Error   string        `json:"error,omitempty"`
}

// HandleStatus handles GET /api/training/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.orch.Info())
}

// HandleMetrics handles GET /api/training/metrics?since=N
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	since, ok := h.intParam(w, r, "since")
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.orch.Metrics(since))
}

// HandleMetricsSummary handles GET /api/training/metrics/summary?smooth=N
func (h *Handler) HandleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	period, ok := h.intParam(w, r, "smooth")
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.orch.Summary(period))
}

// HandleLogs handles GET /api/training/logs?tail=N
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	tail, ok := h.intParam(w, r, "tail")
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.orch.Logs(tail))
}

// HandleStart handles POST /api/training/start
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.command(w, "start", h.orch.Start(r.Context()))
}

// HandleInterrupt handles POST /api/training/interrupt
func (h *Handler) HandleInterrupt(w http.ResponseWriter, r *http.Request) {
	h.command(w, "interrupt", h.orch.Interrupt())
}

// HandleResume handles POST /api/training/resume
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.command(w, "resume", h.orch.Resume())
}

// command writes the outcome of a run command.
// An invalid transition is a non-disruptive no-op, not a client error.
func (h *Handler) command(w http.ResponseWriter, name string, err error) {
	resp := CommandResponse{Applied: err == nil, Info: h.orch.Info()}

	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, training.ErrInvalidTransition):
		resp.Error = err.Error()
		h.writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, training.ErrRejectedStart):
		resp.Error = err.Error()
		h.writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, domain.ErrInvalidConfig):
		resp.Error = err.Error()
		h.writeJSON(w, http.StatusBadRequest, resp)
	default:
		h.log.Error().Err(err).Str("command", name).Msg("Run command failed")
		resp.Error = "Run command failed"
		h.writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// HandleListVersions handles GET /api/versions
func (h *Handler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.orch.Versions())
}

type captureRequest struct {
	Name string `json:"name"`
}

// HandleCaptureVersion handles POST /api/versions. The body is optional.
func (h *Handler) HandleCaptureVersion(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	v, err := h.orch.CaptureVersion(r.Context(), req.Name)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to capture version")
		h.writeError(w, http.StatusInternalServerError, "Failed to capture version")
		return
	}
	h.writeJSON(w, http.StatusCreated, v)
}

// HandleGetVersion handles GET /api/versions/{id}
func (h *Handler) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.orch.Version(chi.URLParam(r, "id"))
	if err != nil {
		h.writeVersionError(w, err, "Failed to get version")
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

type restoreResponse struct {
	Version domain.VersionSummary `json:"version"`
	Info    training.Info         `json:"info"`
}

// HandleRestoreVersion handles POST /api/versions/{id}/restore
func (h *Handler) HandleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.orch.RestoreVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeVersionError(w, err, "Failed to restore version")
		return
	}
	h.writeJSON(w, http.StatusOK, restoreResponse{Version: v.Summary(), Info: h.orch.Info()})
}

// HandleDeleteVersion handles DELETE /api/versions/{id}
func (h *Handler) HandleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.DeleteVersion(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeVersionError(w, err, "Failed to delete version")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleArchiveVersion handles POST /api/versions/{id}/archive
func (h *Handler) HandleArchiveVersion(w http.ResponseWriter, r *http.Request) {
	location, err := h.orch.ArchiveVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeVersionError(w, err, "Failed to archive version")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"location": location})
}

func (h *Handler) writeVersionError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, versions.ErrVersionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, training.ErrConcurrentRestore):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrArchiveDisabled):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, training.ErrInvalidState):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg(fallback)
		h.writeError(w, http.StatusInternalServerError, fallback)
	}
}

// intParam reads an optional non-negative integer query parameter
func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return v, true
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
