package settings

import (
	"database/sql"
	"testing"

	"github.com/aristath/llamaforge/internal/database"
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func setupSettingsTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := database.Schema(database.StudioName)
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

func newTestService(t *testing.T, bus *events.Bus) *Service {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	var manager *events.Manager
	if bus != nil {
		manager = events.NewManager(bus, log)
	}
	return NewService(NewRepository(setupSettingsTestDB(t), log), domain.DefaultConfiguration(), false, manager, log)
}

func TestService_GetConfigDefaultsUntilSaved(t *testing.T) {
	s := newTestService(t, nil)

	cfg, err := s.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfiguration(), cfg)
}

func TestService_UpdateConfigRoundTrip(t *testing.T) {
	bus := events.NewBus()
	var changes []*events.Event
	bus.Subscribe(events.ConfigChanged, func(e *events.Event) { changes = append(changes, e) })
	s := newTestService(t, bus)

	cfg := domain.DefaultConfiguration()
	cfg.BaseModel = "qwen2:7b"
	cfg.Epochs = 5
	cfg.VisionEnabled = true
	cfg.VisionEncoder = "SigLIP-SO400M"
	cfg.TrainingMethod = domain.MethodDPO

	_, err := s.UpdateConfig(cfg)
	require.NoError(t, err)

	got, err := s.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	require.Len(t, changes, 1)
	assert.Equal(t, "updated", changes[0].Data["action"])
}

func TestService_UpdateConfigRejectsInvalid(t *testing.T) {
	s := newTestService(t, nil)

	cfg := domain.DefaultConfiguration()
	cfg.ContextLength = 3000
	_, err := s.UpdateConfig(cfg)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)

	got, err := s.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, 2048, got.ContextLength)
}

func TestService_UpdateConfigNilToolsNormalized(t *testing.T) {
	s := newTestService(t, nil)
	cfg := domain.DefaultConfiguration()
	cfg.Tools = nil

	saved, err := s.UpdateConfig(cfg)
	require.NoError(t, err)
	assert.NotNil(t, saved.Tools)
}

func TestService_ToolLifecycle(t *testing.T) {
	s := newTestService(t, nil)

	added, err := s.AddTool(domain.ToolDefinition{Name: "get_weather", Description: "Weather lookup", Parameters: `{"type":"object"}`})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)

	found, err := s.FindTool(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "get_weather", found.Name)

	cfg, err := s.GetConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Tools, 1)

	require.NoError(t, s.RemoveTool(added.ID))
	assert.ErrorIs(t, s.RemoveTool(added.ID), ErrToolNotFound)

	_, err = s.FindTool(added.ID)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestService_AddToolRequiresName(t *testing.T) {
	s := newTestService(t, nil)
	_, err := s.AddTool(domain.ToolDefinition{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestService_GenericSettings(t *testing.T) {
	s := newTestService(t, nil)

	assert.False(t, s.AutoCapture())
	all, err := s.GetAll()
	require.NoError(t, err)
	assert.Equal(t, false, all[KeyAutoCapture])
	assert.Equal(t, "dark", all[KeyDashboardTheme])

	require.NoError(t, s.Set(KeyAutoCapture, true))
	require.NoError(t, s.Set(KeyDashboardTheme, "light"))
	assert.True(t, s.AutoCapture())

	all, err = s.GetAll()
	require.NoError(t, err)
	assert.Equal(t, true, all[KeyAutoCapture])
	assert.Equal(t, "light", all[KeyDashboardTheme])

	assert.ErrorIs(t, s.Set("nope", 1), ErrUnknownSetting)
	assert.ErrorIs(t, s.Set(KeyAutoCapture, "yes"), ErrInvalidValue)
	assert.ErrorIs(t, s.Set(KeyDashboardTheme, 3), ErrInvalidValue)
}

func TestRepository_GetMissingReturnsNil(t *testing.T) {
	repo := NewRepository(setupSettingsTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))

	v, err := repo.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, repo.Set("k", "v", nil))
	v, err = repo.Get("k")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "v", *v)

	require.NoError(t, repo.Delete("k"))
	v, err = repo.Get("k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRepository_GetBool(t *testing.T) {
	repo := NewRepository(setupSettingsTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))

	tests := []struct {
		stored   string
		expected bool
	}{
		{"true", true},
		{"1", true},
		{"YES", true},
		{" on ", true},
		{"false", false},
		{"0", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		t.Run(tt.stored, func(t *testing.T) {
			require.NoError(t, repo.Set("flag", tt.stored, nil))
			got, err := repo.GetBool("flag", !tt.expected)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	got, err := repo.GetBool("absent", true)
	require.NoError(t, err)
	assert.True(t, got)
}
