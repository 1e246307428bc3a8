// Package orchestrator wires the studio together: it feeds the current configuration
// and curriculum size into the run controller, captures and restores versions, and
// publishes run activity on the event bus.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/aristath/llamaforge/internal/modules/telemetry"
	"github.com/aristath/llamaforge/internal/modules/training"
	"github.com/aristath/llamaforge/internal/modules/versions"
	"github.com/rs/zerolog"
)

// ErrArchiveDisabled is returned by ArchiveVersion when no archive bucket is configured
var ErrArchiveDisabled = errors.New("version archive not configured")

// ConfigStore reads and writes the current training configuration
type ConfigStore interface {
	GetConfig() (domain.Configuration, error)
	UpdateConfig(cfg domain.Configuration) (domain.Configuration, error)
}

// DatasetSource reports how many curriculum items a run would train on
type DatasetSource interface {
	DatasetSize() (int, error)
}

// AutoCaptureSetting reports whether completed runs are captured automatically
type AutoCaptureSetting interface {
	AutoCapture() bool
}

// Archiver copies a version to long-term storage and returns its location
type Archiver interface {
	Archive(ctx context.Context, v domain.ModelVersion) (string, error)
}

// Orchestrator coordinates the controller, the version store and the studio settings
type Orchestrator struct {
	controller   *training.Controller
	versions     *versions.Store
	config       ConfigStore
	dataset      DatasetSource
	autoCapture  AutoCaptureSetting
	archiver     Archiver
	eventManager *events.Manager
	log          zerolog.Logger
}

// New creates an orchestrator and registers its observers on the controller.
// autoCapture and archiver may be nil.
func New(
	controller *training.Controller,
	store *versions.Store,
	config ConfigStore,
	dataset DatasetSource,
	autoCapture AutoCaptureSetting,
	archiver Archiver,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		controller:   controller,
		versions:     store,
		config:       config,
		dataset:      dataset,
		autoCapture:  autoCapture,
		archiver:     archiver,
		eventManager: eventManager,
		log:          log.With().Str("service", "orchestrator").Logger(),
	}

	if eventManager != nil {
		controller.AddObserver(newEventObserver(eventManager))
	}
	controller.AddObserver(training.ObserverFuncs{OnStatus: o.onStatus})
	return o
}

// Start begins a run with the current configuration and curriculum size
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, err := o.config.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	size, err := o.dataset.DatasetSize()
	if err != nil {
		return fmt.Errorf("failed to count curriculum: %w", err)
	}

	return o.controller.Start(cfg, size)
}

// Interrupt pauses a training run
func (o *Orchestrator) Interrupt() error {
	return o.controller.Interrupt()
}

// Resume continues a paused run
func (o *Orchestrator) Resume() error {
	return o.controller.Resume()
}

// Info returns the current run status view
func (o *Orchestrator) Info() training.Info {
	return o.controller.Info()
}

// Metrics returns samples with a step greater than since (all samples for since <= 0)
func (o *Orchestrator) Metrics(since int) []domain.MetricSample {
	if since > 0 {
		return o.controller.MetricsSince(since)
	}
	return o.controller.Metrics()
}

// Logs returns the last tail log entries, or all entries when tail <= 0
func (o *Orchestrator) Logs(tail int) []domain.LogEntry {
	logs := o.controller.Logs()
	if tail > 0 && tail < len(logs) {
		return logs[len(logs)-tail:]
	}
	return logs
}

// MetricsSummary aggregates the current series and, for period >= 2, its EMA
type MetricsSummary struct {
	telemetry.Summary
	Smoothed []domain.MetricSample `json:"smoothed,omitempty"`
}

// Summary computes statistics over the current metric series
func (o *Orchestrator) Summary(smoothPeriod int) MetricsSummary {
	samples := o.controller.Metrics()
	out := MetricsSummary{Summary: telemetry.Summarize(samples)}
	if smoothPeriod >= 2 {
		out.Smoothed = telemetry.Smooth(samples, smoothPeriod)
	}
	return out
}

// CaptureVersion snapshots the current run under name. A blank name is generated.
func (o *Orchestrator) CaptureVersion(ctx context.Context, name string) (domain.ModelVersion, error) {
	v, err := o.versions.Capture(ctx, name, o.controller.Snapshot())
	if err != nil {
		return domain.ModelVersion{}, err
	}
	o.emitVersion("captured", v, "")
	return v, nil
}

// RestoreVersion replaces the run state with version id and makes its configuration
// the current one. It fails with training.ErrConcurrentRestore while a run is
// preparing or training. The configuration is saved first so a failed save
// leaves the run untouched; a rejected restore puts the previous configuration back.
func (o *Orchestrator) RestoreVersion(ctx context.Context, id string) (domain.ModelVersion, error) {
	v, err := o.versions.Get(id)
	if err != nil {
		return domain.ModelVersion{}, err
	}

	previous, err := o.config.GetConfig()
	if err != nil {
		return domain.ModelVersion{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, err := o.config.UpdateConfig(v.Config.Clone()); err != nil {
		return domain.ModelVersion{}, fmt.Errorf("failed to save version configuration: %w", err)
	}

	if err := o.controller.Restore(v.State()); err != nil {
		if _, rbErr := o.config.UpdateConfig(previous); rbErr != nil {
			o.log.Error().Err(rbErr).Str("id", v.ID).Msg("Failed to put back configuration after rejected restore")
		}
		return domain.ModelVersion{}, err
	}

	o.log.Info().Str("id", v.ID).Str("name", v.Name).Msg("Version restored")
	o.emitVersion("restored", v, "")
	return v, nil
}

// DeleteVersion removes version id from the store
func (o *Orchestrator) DeleteVersion(ctx context.Context, id string) error {
	v, err := o.versions.Get(id)
	if err != nil {
		return err
	}
	if err := o.versions.Delete(ctx, id); err != nil {
		return err
	}
	o.emitVersion("deleted", v, "")
	return nil
}

// ArchiveVersion uploads version id to the configured archive
func (o *Orchestrator) ArchiveVersion(ctx context.Context, id string) (string, error) {
	if o.archiver == nil {
		return "", ErrArchiveDisabled
	}
	v, err := o.versions.Get(id)
	if err != nil {
		return "", err
	}

	location, err := o.archiver.Archive(ctx, v)
	if err != nil {
		return "", fmt.Errorf("failed to archive version %s: %w", id, err)
	}
	o.emitVersion("archived", v, location)
	return location, nil
}

// ArchiveEnabled reports whether ArchiveVersion can succeed
func (o *Orchestrator) ArchiveEnabled() bool {
	return o.archiver != nil
}

// Versions returns the listing form of all captured versions
func (o *Orchestrator) Versions() []domain.VersionSummary {
	return o.versions.Summaries()
}

// Version returns the full version id
func (o *Orchestrator) Version(id string) (domain.ModelVersion, error) {
	return o.versions.Get(id)
}

// onStatus runs on the controller's dispatch path and must not call the controller.
// It only touches the version store, using the state carried by the transition.
func (o *Orchestrator) onStatus(t training.Transition) {
	if t.To != domain.StatusCompleted || t.Cause != training.CauseComplete {
		return
	}
	if o.autoCapture == nil || !o.autoCapture.AutoCapture() {
		return
	}

	v, err := o.versions.Capture(context.Background(), "", t.State)
	if err != nil {
		o.log.Error().Err(err).Msg("Automatic capture of completed run failed")
		if o.eventManager != nil {
			o.eventManager.EmitError("orchestrator", err, map[string]interface{}{"action": "auto_capture"})
		}
		return
	}
	o.log.Info().Str("id", v.ID).Str("name", v.Name).Msg("Completed run captured automatically")
	o.emitVersion("captured", v, "")
}

func (o *Orchestrator) emitVersion(action string, v domain.ModelVersion, location string) {
	if o.eventManager == nil {
		return
	}
	o.eventManager.EmitTyped("versions", &events.VersionEventData{
		Action:   action,
		ID:       v.ID,
		Name:     v.Name,
		Status:   string(v.Status),
		Progress: v.Progress,
		Location: location,
	})
}
