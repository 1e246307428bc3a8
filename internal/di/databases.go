package di

import (
	"fmt"

	"github.com/aristath/llamaforge/internal/config"
	"github.com/aristath/llamaforge/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens studio.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// studio.db - settings, curriculum and persisted model versions
	studioDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    database.StudioName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize studio database: %w", err)
	}
	container.StudioDB = studioDB

	if err := studioDB.Migrate(); err != nil {
		studioDB.Close()
		return nil, fmt.Errorf("failed to apply schema to %s: %w", studioDB.Name(), err)
	}

	log.Info().Str("path", studioDB.Path()).Msg("Studio database initialized and schema applied")

	return container, nil
}
