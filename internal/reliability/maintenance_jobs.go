package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ArchiveRotationJob prunes version archives older than the retention period
type ArchiveRotationJob struct {
	service       *VersionArchiveService
	retentionDays int
	log           zerolog.Logger
}

// NewArchiveRotationJob creates a new archive rotation job
func NewArchiveRotationJob(service *VersionArchiveService, retentionDays int, log zerolog.Logger) *ArchiveRotationJob {
	return &ArchiveRotationJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "archive_rotation").Logger(),
	}
}

// Name returns the job name
func (j *ArchiveRotationJob) Name() string {
	return "archive_rotation"
}

// Run executes the rotation
func (j *ArchiveRotationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := j.service.RotateOldArchives(ctx, j.retentionDays)
	if err != nil {
		return err
	}
	j.log.Debug().Int("deleted", deleted).Msg("Archive rotation finished")
	return nil
}
