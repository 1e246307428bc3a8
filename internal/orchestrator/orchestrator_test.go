package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/llamaforge/internal/clock"
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/aristath/llamaforge/internal/modules/curriculum"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/aristath/llamaforge/internal/modules/training"
	"github.com/aristath/llamaforge/internal/modules/versions"
	testingpkg "github.com/aristath/llamaforge/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// memConfig is an in-memory ConfigStore
type memConfig struct {
	mu        sync.Mutex
	cfg       domain.Configuration
	updates   int
	updateErr error
}

func (m *memConfig) GetConfig() (domain.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone(), nil
}

func (m *memConfig) UpdateConfig(cfg domain.Configuration) (domain.Configuration, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Configuration{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return domain.Configuration{}, m.updateErr
	}
	m.cfg = cfg.Clone()
	m.updates++
	return cfg, nil
}

type fixedDataset struct {
	size int
	err  error
}

func (f fixedDataset) DatasetSize() (int, error) {
	return f.size, f.err
}

type autoCaptureFlag bool

func (a autoCaptureFlag) AutoCapture() bool {
	return bool(a)
}

type fakeArchiver struct {
	archived []string
	err      error
}

func (f *fakeArchiver) Archive(_ context.Context, v domain.ModelVersion) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.archived = append(f.archived, v.ID)
	return "s3://bucket/versions/" + v.ID + ".msgpack", nil
}

type fixture struct {
	orch     *Orchestrator
	sched    *clock.Manual
	config   *memConfig
	store    *versions.Store
	bus      *events.Bus
	archiver *fakeArchiver
}

func twoEpochConfig() domain.Configuration {
	cfg := domain.DefaultConfiguration()
	cfg.Epochs = 2
	return cfg
}

func newFixture(t *testing.T, dataset DatasetSource, autoCapture bool) *fixture {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	sched := clock.NewManual(testEpoch)
	controller := training.NewController(training.Options{Scheduler: sched}, log)
	t.Cleanup(controller.Close)

	ids := 0
	store := versions.NewStore(log,
		versions.WithClock(sched.Now),
		versions.WithIDGenerator(func() string {
			ids++
			return "id-" + string(rune('0'+ids))
		}),
	)

	bus := events.NewBus()
	config := &memConfig{cfg: twoEpochConfig()}
	archiver := &fakeArchiver{}

	orch := New(controller, store, config, dataset, autoCaptureFlag(autoCapture), archiver, events.NewManager(bus, log), log)
	return &fixture{orch: orch, sched: sched, config: config, store: store, bus: bus, archiver: archiver}
}

func (f *fixture) runToCompletion(t *testing.T) {
	t.Helper()
	require.NoError(t, f.orch.Start(context.Background()))
	f.sched.Advance(training.DefaultSettleDelay)
	f.sched.Advance(20 * training.DefaultTickInterval)
	require.Equal(t, domain.StatusCompleted, f.orch.Info().Status)
}

func TestStart_UsesCurrentConfigAndDatasetSize(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 7}, false)

	require.NoError(t, f.orch.Start(context.Background()))

	info := f.orch.Info()
	assert.Equal(t, domain.StatusPreparing, info.Status)
	assert.Equal(t, 7, info.DatasetSize)
	assert.Equal(t, 20, info.TotalSteps)
	assert.Equal(t, "llama3:8b", info.BaseModel)
}

func TestStart_EmptyCurriculumRejected(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 0}, false)

	err := f.orch.Start(context.Background())
	assert.ErrorIs(t, err, training.ErrRejectedStart)
	assert.Equal(t, domain.StatusIdle, f.orch.Info().Status)

	logs := f.orch.Logs(0)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.LevelError, logs[0].Level)
	assert.Equal(t, "Curriculum empty. Load data first.", logs[0].Message)
}

func TestStart_PreferencePairsAloneRejected(t *testing.T) {
	db := testingpkg.NewTestDB(t)
	log := zerolog.Nop()
	config := settings.NewService(settings.NewRepository(db.Conn(), log), twoEpochConfig(), false, nil, log)
	curr := curriculum.NewService(curriculum.NewRepository(db.Conn(), log), nil, settings.NewCredentials(), config, nil, nil, log)

	_, err := curr.AddPreferences([]domain.PreferencePair{{Prompt: "p", Chosen: "a", Rejected: "b"}})
	require.NoError(t, err)

	f := newFixture(t, curr, false)
	err = f.orch.Start(context.Background())
	assert.ErrorIs(t, err, training.ErrRejectedStart)
	assert.Equal(t, domain.StatusIdle, f.orch.Info().Status)

	logs := f.orch.Logs(0)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.LevelError, logs[0].Level)

	_, err = curr.AddLessons(testingpkg.NewLessonFixtures(1))
	require.NoError(t, err)
	require.NoError(t, f.orch.Start(context.Background()))
	assert.Equal(t, 1, f.orch.Info().DatasetSize)
}

func TestStart_DatasetErrorPropagates(t *testing.T) {
	boom := errors.New("db locked")
	f := newFixture(t, fixedDataset{err: boom}, false)

	assert.ErrorIs(t, f.orch.Start(context.Background()), boom)
	assert.Equal(t, domain.StatusIdle, f.orch.Info().Status)
}

func TestStart_CancelledContext(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 1}, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.orch.Start(ctx), context.Canceled)
}

func TestInterruptResumeAndReadAccessors(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	require.NoError(t, f.orch.Start(context.Background()))
	f.sched.Advance(training.DefaultSettleDelay)
	f.sched.Advance(6 * training.DefaultTickInterval)

	require.NoError(t, f.orch.Interrupt())
	assert.ErrorIs(t, f.orch.Interrupt(), training.ErrInvalidTransition)
	assert.Equal(t, domain.StatusPaused, f.orch.Info().Status)

	assert.Len(t, f.orch.Metrics(0), 6)
	since := f.orch.Metrics(4)
	require.Len(t, since, 2)
	assert.Equal(t, 5, since[0].Step)

	all := f.orch.Logs(0)
	tail := f.orch.Logs(1)
	require.Len(t, tail, 1)
	assert.Equal(t, all[len(all)-1], tail[0])
	assert.Equal(t, domain.LevelWarn, tail[0].Level)

	require.NoError(t, f.orch.Resume())
	assert.ErrorIs(t, f.orch.Resume(), training.ErrInvalidTransition)
	f.sched.Advance(14 * training.DefaultTickInterval)
	assert.Equal(t, domain.StatusCompleted, f.orch.Info().Status)
}

func TestSummary(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	f.runToCompletion(t)

	s := f.orch.Summary(0)
	assert.Equal(t, 20, s.Count)
	assert.Equal(t, 20, s.LastStep)
	assert.Nil(t, s.Smoothed)

	s = f.orch.Summary(5)
	assert.Len(t, s.Smoothed, 16)
}

func TestCaptureAndRestoreRoundTrip(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	f.runToCompletion(t)

	v, err := f.orch.CaptureVersion(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.Name)
	assert.Equal(t, testEpoch.Add(training.DefaultSettleDelay+20*training.DefaultTickInterval), v.CreatedAt)
	assert.Len(t, v.Metrics, 20)

	// Change the current configuration, then run again so the live state diverges
	changed := twoEpochConfig()
	changed.Epochs = 1
	changed.BaseModel = "phi3:latest"
	_, err = f.config.UpdateConfig(changed)
	require.NoError(t, err)
	require.NoError(t, f.orch.Start(context.Background()))
	f.sched.Advance(training.DefaultSettleDelay + 10*training.DefaultTickInterval)
	require.Len(t, f.orch.Metrics(0), 10)

	restored, err := f.orch.RestoreVersion(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, restored.ID)

	assert.Equal(t, domain.StatusCompleted, f.orch.Info().Status)
	assert.Equal(t, v.Metrics, f.orch.Metrics(0))
	assert.Equal(t, v.Logs, f.orch.Logs(0))

	cfg, err := f.config.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", cfg.BaseModel, "restored configuration written back")
	assert.Equal(t, 2, cfg.Epochs)
}

func TestRestoreRejectedWhileScheduled(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	v, err := f.orch.CaptureVersion(context.Background(), "idle")
	require.NoError(t, err)

	require.NoError(t, f.orch.Start(context.Background()))
	_, err = f.orch.RestoreVersion(context.Background(), v.ID)
	assert.ErrorIs(t, err, training.ErrConcurrentRestore, "PREPARING")

	f.sched.Advance(training.DefaultSettleDelay + 2*training.DefaultTickInterval)
	_, err = f.orch.RestoreVersion(context.Background(), v.ID)
	assert.ErrorIs(t, err, training.ErrConcurrentRestore, "TRAINING")
	assert.Len(t, f.orch.Metrics(0), 2, "live run untouched")

	require.NoError(t, f.orch.Interrupt())
	_, err = f.orch.RestoreVersion(context.Background(), v.ID)
	require.NoError(t, err, "PAUSED may be restored")
	assert.Equal(t, domain.StatusIdle, f.orch.Info().Status)
	assert.Empty(t, f.orch.Metrics(0))
}

func TestRestoreRejectedKeepsConfiguration(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	v, err := f.orch.CaptureVersion(context.Background(), "idle")
	require.NoError(t, err)

	changed := twoEpochConfig()
	changed.BaseModel = "phi3:latest"
	_, err = f.config.UpdateConfig(changed)
	require.NoError(t, err)

	require.NoError(t, f.orch.Start(context.Background()))
	_, err = f.orch.RestoreVersion(context.Background(), v.ID)
	require.ErrorIs(t, err, training.ErrConcurrentRestore)

	cfg, err := f.config.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, "phi3:latest", cfg.BaseModel)
}

func TestRestoreConfigSaveFailureLeavesRunUntouched(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	v, err := f.orch.CaptureVersion(context.Background(), "idle")
	require.NoError(t, err)
	f.runToCompletion(t)

	f.config.updateErr = errors.New("disk full")
	_, err = f.orch.RestoreVersion(context.Background(), v.ID)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")

	assert.Equal(t, domain.StatusCompleted, f.orch.Info().Status)
	assert.Len(t, f.orch.Metrics(0), 20)
}

func TestVersionNotFound(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)

	_, err := f.orch.RestoreVersion(context.Background(), "missing")
	assert.ErrorIs(t, err, versions.ErrVersionNotFound)
	assert.ErrorIs(t, f.orch.DeleteVersion(context.Background(), "missing"), versions.ErrVersionNotFound)
	_, err = f.orch.ArchiveVersion(context.Background(), "missing")
	assert.ErrorIs(t, err, versions.ErrVersionNotFound)
	_, err = f.orch.Version("missing")
	assert.ErrorIs(t, err, versions.ErrVersionNotFound)
}

func TestDeleteVersion(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	a, err := f.orch.CaptureVersion(context.Background(), "a")
	require.NoError(t, err)
	b, err := f.orch.CaptureVersion(context.Background(), "b")
	require.NoError(t, err)

	require.NoError(t, f.orch.DeleteVersion(context.Background(), a.ID))

	list := f.orch.Versions()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestArchiveVersion(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	v, err := f.orch.CaptureVersion(context.Background(), "a")
	require.NoError(t, err)

	var archivedEvents []events.Event
	f.bus.Subscribe(events.VersionArchived, func(e *events.Event) { archivedEvents = append(archivedEvents, *e) })

	location, err := f.orch.ArchiveVersion(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/versions/"+v.ID+".msgpack", location)
	assert.Equal(t, []string{v.ID}, f.archiver.archived)
	require.Len(t, archivedEvents, 1)
	assert.Equal(t, location, archivedEvents[0].Data["location"])

	f.archiver.err = errors.New("bucket gone")
	_, err = f.orch.ArchiveVersion(context.Background(), v.ID)
	assert.ErrorContains(t, err, "bucket gone")
}

func TestArchiveDisabled(t *testing.T) {
	log := zerolog.Nop()
	controller := training.NewController(training.Options{Scheduler: clock.NewManual(testEpoch)}, log)
	t.Cleanup(controller.Close)
	orch := New(controller, versions.NewStore(log), &memConfig{cfg: twoEpochConfig()}, fixedDataset{size: 1}, nil, nil, nil, log)

	v, err := orch.CaptureVersion(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, orch.ArchiveEnabled())
	_, err = orch.ArchiveVersion(context.Background(), v.ID)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestAutoCaptureOnCompletion(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, true)
	f.runToCompletion(t)

	list := f.store.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusCompleted, list[0].Status)
	assert.Equal(t, 100.0, list[0].Progress)
	assert.Len(t, list[0].Metrics, 20)
	assert.Equal(t, domain.LevelSuccess, list[0].Logs[len(list[0].Logs)-1].Level)
}

func TestAutoCaptureDisabled(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)
	f.runToCompletion(t)
	assert.Zero(t, f.store.Len())
}

func TestAutoCaptureSkipsRestoredCompletedState(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, true)
	f.runToCompletion(t)
	require.Equal(t, 1, f.store.Len())

	v, _ := f.store.Latest()
	_, err := f.orch.RestoreVersion(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Len(), "restoring into COMPLETED is not a completion")
}

func TestEventsPublished(t *testing.T) {
	f := newFixture(t, fixedDataset{size: 3}, false)

	var mu sync.Mutex
	counts := map[events.EventType]int{}
	var statuses []string
	f.bus.SubscribeAll(events.AllTypes, func(e *events.Event) {
		mu.Lock()
		defer mu.Unlock()
		counts[e.Type]++
		if e.Type == events.RunStatusChanged {
			statuses = append(statuses, e.Data["to"].(string))
		}
	})

	f.runToCompletion(t)
	_, err := f.orch.CaptureVersion(context.Background(), "")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PREPARING", "TRAINING", "COMPLETED"}, statuses)
	assert.Equal(t, 20, counts[events.MetricRecorded])
	assert.Equal(t, 6, counts[events.LogAppended])
	assert.Equal(t, 1, counts[events.VersionCaptured])
}
