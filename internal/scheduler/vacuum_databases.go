package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/llamaforge/internal/database"
	"github.com/rs/zerolog"
)

const (
	// DefaultVacuumFreeRatio is the share of free pages above which a database is vacuumed
	DefaultVacuumFreeRatio = 0.2
	vacuumTimeout          = 10 * time.Minute
)

// VacuumDatabasesJob rewrites databases whose freelist has grown large.
// Deleting versions and curricula leaves free pages behind.
type VacuumDatabasesJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
	minRatio  float64
}

// NewVacuumDatabasesJob creates a job that vacuums any database whose free pages
// exceed minRatio of its page count. A ratio <= 0 vacuums unconditionally.
func NewVacuumDatabasesJob(databases map[string]*database.DB, minRatio float64) *VacuumDatabasesJob {
	return &VacuumDatabasesJob{
		log:       zerolog.Nop(),
		databases: databases,
		minRatio:  minRatio,
	}
}

// SetLogger sets the logger for the job
func (j *VacuumDatabasesJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *VacuumDatabasesJob) Name() string {
	return "vacuum_databases"
}

// Run vacuums every database over the freelist threshold
func (j *VacuumDatabasesJob) Run() error {
	vacuumed := 0
	for name, db := range j.databases {
		if db == nil {
			continue
		}

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("failed to read stats for %s: %w", name, err)
		}
		ratio := 0.0
		if stats.PageCount > 0 {
			ratio = float64(stats.FreelistCount) / float64(stats.PageCount)
		}
		if j.minRatio > 0 && ratio < j.minRatio {
			j.log.Debug().Str("database", name).Float64("free_ratio", ratio).Msg("Vacuum not needed")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), vacuumTimeout)
		err = db.Vacuum(ctx)
		cancel()
		if err != nil {
			return err
		}

		j.log.Info().
			Str("database", name).
			Int64("free_pages", stats.FreelistCount).
			Msg("Database vacuumed")
		vacuumed++
	}

	j.log.Info().Int("vacuumed", vacuumed).Msg("Vacuum check completed")
	return nil
}
