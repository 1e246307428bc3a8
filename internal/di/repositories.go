package di

import (
	"github.com/aristath/llamaforge/internal/modules/curriculum"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/aristath/llamaforge/internal/modules/versions"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories over studio.db
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	conn := container.StudioDB.Conn()

	container.SettingsRepo = settings.NewRepository(conn, log)
	container.CurriculumRepo = curriculum.NewRepository(conn, log)
	container.VersionRepo = versions.NewRepository(conn, log)

	log.Info().Msg("Repositories initialized")
	return nil
}
