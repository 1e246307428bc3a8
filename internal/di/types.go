// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/llamaforge/internal/clients/gemini"
	"github.com/aristath/llamaforge/internal/clients/ollama"
	"github.com/aristath/llamaforge/internal/database"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/aristath/llamaforge/internal/modules/curriculum"
	"github.com/aristath/llamaforge/internal/modules/export"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/aristath/llamaforge/internal/modules/testbench"
	"github.com/aristath/llamaforge/internal/modules/training"
	"github.com/aristath/llamaforge/internal/modules/versions"
	"github.com/aristath/llamaforge/internal/orchestrator"
	"github.com/aristath/llamaforge/internal/reliability"
	"github.com/aristath/llamaforge/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

// Container holds all dependencies for the application.
// It is created by Wire and passed to the server for access to services.
type Container struct {
	// Databases
	StudioDB *database.DB

	// Repositories
	SettingsRepo   *settings.Repository
	CurriculumRepo *curriculum.Repository
	VersionRepo    *versions.Repository

	// Clients
	GeminiClient *gemini.Client
	OllamaClient *ollama.Client
	R2Client     *reliability.R2Client // nil when no archive bucket is configured

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Services
	Credentials       *settings.Credentials
	SettingsService   *settings.Service
	CurriculumService *curriculum.Service
	VersionStore      *versions.Store
	Controller        *training.Controller
	Orchestrator      *orchestrator.Orchestrator
	ExportService     *export.Service
	TestBenchService  *testbench.Service
	ArchiveService    *reliability.VersionArchiveService // nil when no archive bucket is configured

	// Metrics
	MetricsRegistry *prometheus.Registry

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs for manual triggering
type JobInstances struct {
	RuntimeProbe    *scheduler.RuntimeProbeJob
	WALCheckpoints  scheduler.Job
	CheckDatabases  scheduler.Job
	VacuumDatabases scheduler.Job
	ArchiveRotation scheduler.Job // nil when archiving is disabled
}

// ByName returns the registered jobs keyed by job name
func (j *JobInstances) ByName() map[string]scheduler.Job {
	jobs := map[string]scheduler.Job{}
	if j.RuntimeProbe != nil {
		jobs[j.RuntimeProbe.Name()] = j.RuntimeProbe
	}
	for _, job := range []scheduler.Job{j.WALCheckpoints, j.CheckDatabases, j.VacuumDatabases, j.ArchiveRotation} {
		if job == nil {
			continue
		}
		jobs[job.Name()] = job
	}
	return jobs
}

// Close stops background work and releases the database
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Controller != nil {
		c.Controller.Close()
	}
	if c.StudioDB != nil {
		return c.StudioDB.Close()
	}
	return nil
}
