package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/aristath/llamaforge/internal/clients/ollama"
	"github.com/aristath/llamaforge/internal/database"
	"github.com/aristath/llamaforge/internal/modules/training"
	"github.com/aristath/llamaforge/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// RunInfoSource reports the current run
type RunInfoSource interface {
	Info() training.Info
	ArchiveEnabled() bool
}

// RuntimeChecker probes the local inference runtime on demand
type RuntimeChecker interface {
	Check(ctx context.Context) ollama.RuntimeStatus
}

// SystemHandlers serves host, database, runtime and job endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	databases map[string]*database.DB
	run       RunInfoSource
	runtime   RuntimeChecker
	jobs      map[string]scheduler.Job
	startedAt time.Time
	hostStats func() (float64, float64)
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status         string        `json:"status"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	GoVersion      string        `json:"go_version"`
	Goroutines     int           `json:"goroutines"`
	CPUPercent     float64       `json:"cpu_percent"`
	MemoryPercent  float64       `json:"memory_percent"`
	Run            training.Info `json:"run"`
	ArchiveEnabled bool          `json:"archive_enabled"`
}

// DatabaseStatsResponse describes one database file
type DatabaseStatsResponse struct {
	Name          string `json:"name"`
	Reachable     bool   `json:"reachable"`
	SizeBytes     int64  `json:"size_bytes"`
	WALSizeBytes  int64  `json:"wal_size_bytes"`
	PageCount     int64  `json:"page_count"`
	PageSize      int64  `json:"page_size"`
	FreelistCount int64  `json:"freelist_count"`
	Error         string `json:"error,omitempty"`
}

// NewSystemHandlers creates system handlers. runtime may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	databases map[string]*database.DB,
	run RunInfoSource,
	runtime RuntimeChecker,
	jobs map[string]scheduler.Job,
) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		databases: databases,
		run:       run,
		runtime:   runtime,
		jobs:      jobs,
		startedAt: time.Now(),
	}
	h.hostStats = h.getSystemStats
	return h
}

// HandleSystemStatus returns host and run status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.hostStats()

	writeJSON(h.log, w, http.StatusOK, SystemStatusResponse{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		Run:            h.run.Info(),
		ArchiveEnabled: h.run.ArchiveEnabled(),
	})
}

// HandleDatabaseStats returns file and page statistics for each database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DatabaseStatsResponse, 0, len(names))
	for _, name := range names {
		entry := DatabaseStatsResponse{Name: name}
		db := h.databases[name]
		if db == nil {
			entry.Error = "not initialized"
			out = append(out, entry)
			continue
		}

		if err := db.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database unreachable")
			entry.Error = err.Error()
			out = append(out, entry)
			continue
		}
		entry.Reachable = true

		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
			entry.Error = err.Error()
		} else {
			entry.SizeBytes = stats.SizeBytes
			entry.WALSizeBytes = stats.WALSizeBytes
			entry.PageCount = stats.PageCount
			entry.PageSize = stats.PageSize
			entry.FreelistCount = stats.FreelistCount
		}
		out = append(out, entry)
	}

	writeJSON(h.log, w, http.StatusOK, out)
}

// HandleRuntimeStatus probes the local inference runtime. Availability is advisory.
func (h *SystemHandlers) HandleRuntimeStatus(w http.ResponseWriter, r *http.Request) {
	if h.runtime == nil {
		writeError(h.log, w, http.StatusServiceUnavailable, "Runtime probe not configured")
		return
	}
	writeJSON(h.log, w, http.StatusOK, h.runtime.Check(r.Context()))
}

// HandleJobsStatus lists the jobs that can be triggered manually
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"jobs":  names,
		"total": len(names),
	})
}

// HandleTriggerJob runs a registered job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		writeError(h.log, w, http.StatusNotFound, "Unknown job: "+name)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")
	if err := job.Run(); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		writeJSON(h.log, w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": name + " completed",
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func writeJSON(log zerolog.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func writeError(log zerolog.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(log, w, status, map[string]string{"error": message})
}
