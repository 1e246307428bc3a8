package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/llamaforge/internal/clients/ollama"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/rs/zerolog"
)

// RuntimeStatusSource reports the availability of the local inference runtime
type RuntimeStatusSource interface {
	Status(ctx context.Context) ollama.RuntimeStatus
}

// RuntimeProbeJob polls the local runtime and publishes RUNTIME_STATUS_CHANGED
// whenever its availability or model count changes.
type RuntimeProbeJob struct {
	source       RuntimeStatusSource
	eventManager *events.Manager
	timeout      time.Duration
	log          zerolog.Logger

	mu     sync.RWMutex
	last   ollama.RuntimeStatus
	probed bool
}

// NewRuntimeProbeJob creates a new RuntimeProbeJob. eventManager may be nil.
func NewRuntimeProbeJob(source RuntimeStatusSource, eventManager *events.Manager, timeout time.Duration) *RuntimeProbeJob {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RuntimeProbeJob{
		source:       source,
		eventManager: eventManager,
		timeout:      timeout,
		log:          zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *RuntimeProbeJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *RuntimeProbeJob) Name() string {
	return "runtime_probe"
}

// Run executes one probe. An unavailable runtime is not a job failure.
func (j *RuntimeProbeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.Check(ctx)
	return nil
}

// Check probes the runtime now, records the result and publishes a change event
func (j *RuntimeProbeJob) Check(ctx context.Context) ollama.RuntimeStatus {
	status := j.source.Status(ctx)

	j.mu.Lock()
	changed := !j.probed ||
		status.Available != j.last.Available ||
		len(status.Models) != len(j.last.Models)
	j.last = status
	j.probed = true
	j.mu.Unlock()

	if !changed {
		j.log.Debug().Bool("available", status.Available).Msg("Runtime status unchanged")
		return status
	}

	j.log.Info().
		Bool("available", status.Available).
		Str("endpoint", status.Endpoint).
		Int("models", len(status.Models)).
		Msg("Runtime status changed")

	if j.eventManager != nil {
		j.eventManager.EmitTyped("runtime", &events.RuntimeStatusChangedData{
			Available: status.Available,
			Endpoint:  status.Endpoint,
			Models:    len(status.Models),
			Timestamp: status.CheckedAt.Format(time.RFC3339),
		})
	}
	return status
}

// Last returns the most recent probe result and whether a probe has run
func (j *RuntimeProbeJob) Last() (ollama.RuntimeStatus, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last, j.probed
}
