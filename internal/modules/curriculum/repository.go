// Package curriculum manages the studio's training data: instruction lessons and
// preference pairs, plus provider-assisted generation, review and run design.
package curriculum

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/llamaforge/internal/database"
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles curriculum database operations.
// Rows keep their insertion order through the seq column.
//
// Database: studio.db (lessons, preference_pairs tables)
type Repository struct {
	db  *sql.DB        // studio.db
	log zerolog.Logger // Structured logger
}

// NewRepository creates a new curriculum repository.
//
// Parameters:
//   - db: Database connection to studio.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "curriculum").Logger(),
	}
}

// ListLessons returns every lesson in insertion order.
//
// Returns:
//   - []domain.Lesson: Lessons, empty (not nil) when there are none
//   - error: Error if query fails
func (r *Repository) ListLessons() ([]domain.Lesson, error) {
	rows, err := r.db.Query(`
		SELECT id, instruction, response, thought, image, video, audio
		FROM lessons
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	lessons := []domain.Lesson{}
	for rows.Next() {
		var l domain.Lesson
		if err := rows.Scan(&l.ID, &l.Instruction, &l.Response, &l.Thought, &l.Image, &l.Video, &l.Audio); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lessons: %w", err)
	}
	return lessons, nil
}

// InsertLessons appends lessons atomically. Either all are stored or none.
//
// Parameters:
//   - lessons: Lessons with non-empty, unique ids
//
// Returns:
//   - error: Error if any insert fails (e.g. duplicate id)
func (r *Repository) InsertLessons(lessons []domain.Lesson) error {
	if len(lessons) == 0 {
		return nil
	}
	now := time.Now().Unix()

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO lessons (id, instruction, response, thought, image, video, audio, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare lesson insert: %w", err)
		}
		defer stmt.Close()

		for _, l := range lessons {
			if _, err := stmt.Exec(l.ID, l.Instruction, l.Response, l.Thought, l.Image, l.Video, l.Audio, now); err != nil {
				return fmt.Errorf("failed to insert lesson %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

// DeleteLesson removes a lesson.
//
// Returns:
//   - bool: true if a row was deleted
//   - error: Error if the statement fails
func (r *Repository) DeleteLesson(id string) (bool, error) {
	return r.deleteByID("lessons", id)
}

// ListPreferences returns every preference pair in insertion order
func (r *Repository) ListPreferences() ([]domain.PreferencePair, error) {
	rows, err := r.db.Query(`
		SELECT id, prompt, chosen, rejected, critique
		FROM preference_pairs
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query preference pairs: %w", err)
	}
	defer rows.Close()

	pairs := []domain.PreferencePair{}
	for rows.Next() {
		var p domain.PreferencePair
		if err := rows.Scan(&p.ID, &p.Prompt, &p.Chosen, &p.Rejected, &p.Critique); err != nil {
			return nil, fmt.Errorf("failed to scan preference pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preference pairs: %w", err)
	}
	return pairs, nil
}

// InsertPreferences appends preference pairs atomically
func (r *Repository) InsertPreferences(pairs []domain.PreferencePair) error {
	if len(pairs) == 0 {
		return nil
	}
	now := time.Now().Unix()

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO preference_pairs (id, prompt, chosen, rejected, critique, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare preference insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range pairs {
			if _, err := stmt.Exec(p.ID, p.Prompt, p.Chosen, p.Rejected, p.Critique, now); err != nil {
				return fmt.Errorf("failed to insert preference pair %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// DeletePreference removes a preference pair, reporting whether it existed
func (r *Repository) DeletePreference(id string) (bool, error) {
	return r.deleteByID("preference_pairs", id)
}

// Counts returns the number of lessons and preference pairs
func (r *Repository) Counts() (lessons int, preferences int, err error) {
	err = r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM lessons),
			(SELECT COUNT(*) FROM preference_pairs)
	`).Scan(&lessons, &preferences)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count curriculum: %w", err)
	}
	return lessons, preferences, nil
}

// Clear removes all lessons and preference pairs in one transaction
func (r *Repository) Clear() error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM lessons"); err != nil {
			return fmt.Errorf("failed to clear lessons: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM preference_pairs"); err != nil {
			return fmt.Errorf("failed to clear preference pairs: %w", err)
		}
		return nil
	})
}

// deleteByID deletes one row; table is a fixed name from this file
func (r *Repository) deleteByID(table, id string) (bool, error) {
	result, err := r.db.Exec("DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}
