package di

import (
	"fmt"
	"time"

	"github.com/aristath/llamaforge/internal/config"
	"github.com/aristath/llamaforge/internal/database"
	"github.com/aristath/llamaforge/internal/reliability"
	"github.com/aristath/llamaforge/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	walCheckpointSchedule   = "@every 15m"
	checkDatabasesSchedule  = "@daily"
	archiveRotationSchedule = "@daily"
	vacuumSchedule          = "@weekly"
)

// RegisterJobs creates the background jobs and registers them with a new scheduler.
// An empty runtime probe schedule disables periodic probing; the job is still
// created so the status endpoint can probe on demand.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)
	jobs := &JobInstances{}

	databases := map[string]*database.DB{database.StudioName: container.StudioDB}

	runtimeProbe := scheduler.NewRuntimeProbeJob(container.OllamaClient, container.EventManager, 10*time.Second)
	runtimeProbe.SetLogger(log.With().Str("job", "runtime_probe").Logger())
	jobs.RuntimeProbe = runtimeProbe
	if cfg.RuntimeProbeSchedule != "" {
		if err := sched.AddJob(cfg.RuntimeProbeSchedule, runtimeProbe); err != nil {
			return nil, fmt.Errorf("failed to register runtime probe: %w", err)
		}
	}

	walJob := scheduler.NewCheckWALCheckpointsJob(databases)
	walJob.SetLogger(log.With().Str("job", "check_wal_checkpoints").Logger())
	jobs.WALCheckpoints = walJob
	if err := sched.AddJob(walCheckpointSchedule, walJob); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	integrityJob := scheduler.NewCheckDatabasesJob(databases)
	integrityJob.SetLogger(log.With().Str("job", "check_databases").Logger())
	jobs.CheckDatabases = integrityJob
	if err := sched.AddJob(checkDatabasesSchedule, integrityJob); err != nil {
		return nil, fmt.Errorf("failed to register integrity job: %w", err)
	}

	vacuumJob := scheduler.NewVacuumDatabasesJob(databases, scheduler.DefaultVacuumFreeRatio)
	vacuumJob.SetLogger(log.With().Str("job", "vacuum_databases").Logger())
	jobs.VacuumDatabases = vacuumJob
	if err := sched.AddJob(vacuumSchedule, vacuumJob); err != nil {
		return nil, fmt.Errorf("failed to register vacuum job: %w", err)
	}

	if container.ArchiveService != nil && cfg.Archive.RetentionDays > 0 {
		rotation := reliability.NewArchiveRotationJob(container.ArchiveService, cfg.Archive.RetentionDays, log)
		jobs.ArchiveRotation = rotation
		if err := sched.AddJob(archiveRotationSchedule, rotation); err != nil {
			return nil, fmt.Errorf("failed to register archive rotation: %w", err)
		}
	}

	container.Scheduler = sched
	log.Info().Int("jobs", sched.Entries()).Msg("Background jobs registered")

	return jobs, nil
}
