// Package versions provides the model version store: an ordered, append-only
// collection of immutable run snapshots that can be restored later.
package versions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrVersionNotFound is returned when no version has the requested id
var ErrVersionNotFound = errors.New("model version not found")

// IDGenerator returns a fresh unique version id
type IDGenerator func() string

// NewUUID is the default IDGenerator
func NewUUID() string {
	return uuid.NewString()
}

// Persister stores versions beyond the life of the process
type Persister interface {
	SaveVersion(ctx context.Context, v domain.ModelVersion) error
	DeleteVersion(ctx context.Context, id string) error
	LoadVersions(ctx context.Context) ([]domain.ModelVersion, error)
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator overrides the id source
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithClock overrides the creation timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithPersister makes every capture and delete durable
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// Store holds captured versions in insertion order. Versions are never evicted;
// memory grows with the number of captures until they are deleted explicitly.
type Store struct {
	mu        sync.RWMutex
	versions  []domain.ModelVersion
	captured  int
	newID     IDGenerator
	now       func() time.Time
	persister Persister
	log       zerolog.Logger
}

// NewStore creates an empty version store
func NewStore(log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		newID: NewUUID,
		now:   time.Now,
		log:   log.With().Str("service", "versions").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory versions with those held by the persister.
// It is a no-op without a persister.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	loaded, err := s.persister.LoadVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = make([]domain.ModelVersion, 0, len(loaded))
	for _, v := range loaded {
		s.versions = append(s.versions, v.Clone())
	}
	s.captured = len(s.versions)

	s.log.Info().Int("count", len(s.versions)).Msg("Loaded persisted versions")
	return nil
}

// Capture stores a deep copy of state as a new version. A blank name becomes "v<n>"
// where n counts captures made by this store.
func (s *Store) Capture(ctx context.Context, name string, state domain.RunState) (domain.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("v%d", s.captured+1)
	}

	snapshot := state.Clone()
	v := domain.ModelVersion{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: s.now(),
		Config:    snapshot.Config,
		Metrics:   snapshot.Metrics,
		Logs:      snapshot.Logs,
		Progress:  snapshot.Progress,
		Status:    snapshot.Status,
	}

	if s.persister != nil {
		if err := s.persister.SaveVersion(ctx, v); err != nil {
			return domain.ModelVersion{}, fmt.Errorf("failed to persist version %s: %w", v.Name, err)
		}
	}

	s.versions = append(s.versions, v)
	s.captured++

	s.log.Info().
		Str("id", v.ID).
		Str("name", v.Name).
		Int("samples", len(v.Metrics)).
		Float64("progress", v.Progress).
		Msg("Version captured")

	return v.Clone(), nil
}

// Get returns a copy of the version with id
func (s *Store) Get(id string) (domain.ModelVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.ModelVersion{}, fmt.Errorf("%w: %s", ErrVersionNotFound, id)
	}
	return s.versions[i].Clone(), nil
}

// Restore returns a copy of the run state captured in version id
func (s *Store) Restore(id string) (domain.RunState, error) {
	v, err := s.Get(id)
	if err != nil {
		return domain.RunState{}, err
	}
	return v.State(), nil
}

// List returns copies of all versions in capture order
func (s *Store) List() []domain.ModelVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ModelVersion, len(s.versions))
	for i, v := range s.versions {
		out[i] = v.Clone()
	}
	return out
}

// Summaries returns the listing form of all versions in capture order
func (s *Store) Summaries() []domain.VersionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.VersionSummary, len(s.versions))
	for i, v := range s.versions {
		out[i] = v.Summary()
	}
	return out
}

// Latest returns the most recently captured version
func (s *Store) Latest() (domain.ModelVersion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.versions) == 0 {
		return domain.ModelVersion{}, false
	}
	return s.versions[len(s.versions)-1].Clone(), true
}

// Len returns the number of stored versions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}

// Delete removes the version with id
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrVersionNotFound, id)
	}

	if s.persister != nil {
		if err := s.persister.DeleteVersion(ctx, id); err != nil {
			return fmt.Errorf("failed to delete persisted version %s: %w", id, err)
		}
	}

	name := s.versions[i].Name
	s.versions = append(s.versions[:i], s.versions[i+1:]...)

	s.log.Info().Str("id", id).Str("name", name).Msg("Version deleted")
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, v := range s.versions {
		if v.ID == id {
			return i
		}
	}
	return -1
}
