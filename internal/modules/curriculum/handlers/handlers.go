// Package handlers provides HTTP handlers for the curriculum module.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aristath/llamaforge/internal/clients/gemini"
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/curriculum"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxImportBytes bounds import bodies; lessons may embed media as data URIs
const maxImportBytes = 32 << 20

// Handler provides HTTP handlers for curriculum endpoints
type Handler struct {
	service *curriculum.Service
	log     zerolog.Logger
}

// NewHandler creates a new curriculum handler
func NewHandler(service *curriculum.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "curriculum").Logger(),
	}
}

type curriculumResponse struct {
	curriculum.Curriculum
	Counts curriculum.Counts `json:"counts"`
}

// HandleGetCurriculum handles GET /api/curriculum
func (h *Handler) HandleGetCurriculum(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read curriculum")
		h.writeError(w, http.StatusInternalServerError, "Failed to read curriculum")
		return
	}
	lessons, prefs := len(snapshot.Lessons), len(snapshot.Preferences)
	h.writeJSON(w, http.StatusOK, curriculumResponse{
		Curriculum: snapshot,
		Counts:     curriculum.Counts{Lessons: lessons, Preferences: prefs, Total: lessons + prefs},
	})
}

// HandleGetCounts handles GET /api/curriculum/counts
func (h *Handler) HandleGetCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Counts()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count curriculum")
		h.writeError(w, http.StatusInternalServerError, "Failed to count curriculum")
		return
	}
	h.writeJSON(w, http.StatusOK, counts)
}

// HandleClear handles DELETE /api/curriculum
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(); err != nil {
		h.log.Error().Err(err).Msg("Failed to clear curriculum")
		h.writeError(w, http.StatusInternalServerError, "Failed to clear curriculum")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddLesson handles POST /api/curriculum/lessons
func (h *Handler) HandleAddLesson(w http.ResponseWriter, r *http.Request) {
	var lesson domain.Lesson
	if err := json.NewDecoder(r.Body).Decode(&lesson); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	added, err := h.service.AddLessons([]domain.Lesson{lesson})
	if err != nil {
		h.writeServiceError(w, err, "Failed to add lesson")
		return
	}
	h.writeJSON(w, http.StatusCreated, added[0])
}

// HandleDeleteLesson handles DELETE /api/curriculum/lessons/{id}
func (h *Handler) HandleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLesson(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Failed to delete lesson")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddPreference handles POST /api/curriculum/preferences
func (h *Handler) HandleAddPreference(w http.ResponseWriter, r *http.Request) {
	var pair domain.PreferencePair
	if err := json.NewDecoder(r.Body).Decode(&pair); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	added, err := h.service.AddPreferences([]domain.PreferencePair{pair})
	if err != nil {
		h.writeServiceError(w, err, "Failed to add preference pair")
		return
	}
	h.writeJSON(w, http.StatusCreated, added[0])
}

// HandleDeletePreference handles DELETE /api/curriculum/preferences/{id}
func (h *Handler) HandleDeletePreference(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePreference(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Failed to delete preference pair")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleImport handles POST /api/curriculum/import
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "Import document too large")
		return
	}

	result, err := h.service.Import(data)
	if err != nil {
		h.writeServiceError(w, err, "Failed to import curriculum")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleExport handles GET /api/curriculum/export
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Export()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to export curriculum")
		h.writeError(w, http.StatusInternalServerError, "Failed to export curriculum")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="curriculum.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleGenerate handles POST /api/curriculum/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req curriculum.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	added, err := h.service.Generate(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to generate lessons")
		return
	}
	h.writeJSON(w, http.StatusCreated, added)
}

// HandleGenerateForTool handles POST /api/curriculum/generate/tool
func (h *Handler) HandleGenerateForTool(w http.ResponseWriter, r *http.Request) {
	var req curriculum.ToolLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	added, err := h.service.GenerateForTool(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to generate tool lessons")
		return
	}
	h.writeJSON(w, http.StatusCreated, added)
}

// HandleVerify handles POST /api/curriculum/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Verify(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Failed to verify curriculum")
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

// HandleForge handles POST /api/curriculum/forge
func (h *Handler) HandleForge(w http.ResponseWriter, r *http.Request) {
	var req curriculum.ForgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	plan, err := h.service.ForgePlan(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to design run")
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

// HandleRank handles POST /api/curriculum/rank
func (h *Handler) HandleRank(w http.ResponseWriter, r *http.Request) {
	var req curriculum.RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.RankPreference(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Failed to rank preference")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleSynthesizeMedia handles POST /api/curriculum/media
func (h *Handler) HandleSynthesizeMedia(w http.ResponseWriter, r *http.Request) {
	var req curriculum.MediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.SynthesizeMedia(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Media synthesis failed")
		return
	}
	status := http.StatusOK
	if result.Lesson != nil {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, result)
}

// writeServiceError maps service and provider errors to HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, curriculum.ErrInvalidItem),
		errors.Is(err, curriculum.ErrInvalidImport),
		errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, gemini.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, curriculum.ErrLessonNotFound),
		errors.Is(err, curriculum.ErrPreferenceNotFound),
		errors.Is(err, settings.ErrToolNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settings.ErrMissingCredential),
		errors.Is(err, gemini.ErrMissingCredential):
		h.writeError(w, http.StatusPreconditionFailed, "Provider API key not configured")
	case errors.Is(err, curriculum.ErrMediaUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, gemini.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, gemini.ErrUnauthorized),
		errors.Is(err, gemini.ErrInvalidResponse),
		errors.Is(err, gemini.ErrTimeout):
		h.log.Warn().Err(err).Msg(fallback)
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Msg(fallback)
		h.writeError(w, http.StatusInternalServerError, fallback)
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
