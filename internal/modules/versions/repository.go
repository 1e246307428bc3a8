package versions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository persists versions in the model_versions table of studio.db.
// Configuration, metrics and logs are stored as msgpack blobs.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new version repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "versions").Logger(),
	}
}

// SaveVersion inserts v. Ids are unique; saving an existing id fails.
func (r *Repository) SaveVersion(ctx context.Context, v domain.ModelVersion) error {
	config, err := msgpack.Marshal(v.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	metrics, err := msgpack.Marshal(v.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	logs, err := msgpack.Marshal(v.Logs)
	if err != nil {
		return fmt.Errorf("failed to encode logs: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO model_versions (id, name, created_at, status, progress, config, metrics, logs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.Name, v.CreatedAt.UTC().Format(time.RFC3339Nano), string(v.Status), v.Progress, config, metrics, logs)
	if err != nil {
		return fmt.Errorf("failed to insert version %s: %w", v.ID, err)
	}
	return nil
}

// DeleteVersion removes the version with id. Deleting a missing id is not an error.
func (r *Repository) DeleteVersion(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM model_versions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete version %s: %w", id, err)
	}
	return nil
}

// LoadVersions returns every stored version in capture order
func (r *Repository) LoadVersions(ctx context.Context) ([]domain.ModelVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, status, progress, config, metrics, logs
		FROM model_versions
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var out []domain.ModelVersion
	for rows.Next() {
		var (
			v                     domain.ModelVersion
			createdAt, status     string
			config, metrics, logs []byte
		)
		if err := rows.Scan(&v.ID, &v.Name, &createdAt, &status, &v.Progress, &config, &metrics, &logs); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}

		v.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			r.log.Warn().Err(err).Str("id", v.ID).Msg("Unparseable version timestamp")
		}
		v.Status = domain.RunStatus(status)

		if err := msgpack.Unmarshal(config, &v.Config); err != nil {
			return nil, fmt.Errorf("failed to decode config of %s: %w", v.ID, err)
		}
		if err := msgpack.Unmarshal(metrics, &v.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics of %s: %w", v.ID, err)
		}
		if err := msgpack.Unmarshal(logs, &v.Logs); err != nil {
			return nil, fmt.Errorf("failed to decode logs of %s: %w", v.ID, err)
		}

		out = append(out, v.Clone())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", err)
	}
	return out, nil
}

// Encode serializes a full version as msgpack, the archive payload format
func Encode(v domain.ModelVersion) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode parses a payload produced by Encode
func Decode(data []byte) (domain.ModelVersion, error) {
	var v domain.ModelVersion
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return domain.ModelVersion{}, err
	}
	return v.Clone(), nil
}
