package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/llamaforge/internal/domain"
)

func TestMetricSeries_AppendEnforcesIncreasingSteps(t *testing.T) {
	s := NewMetricSeries()

	require.NoError(t, s.Append(SampleAt(1)))
	require.NoError(t, s.Append(SampleAt(2)))

	err := s.Append(SampleAt(2))
	assert.ErrorIs(t, err, ErrNonMonotonicStep)

	err = s.Append(domain.MetricSample{Step: 0})
	assert.ErrorIs(t, err, ErrNonMonotonicStep)

	assert.Equal(t, 2, s.Len())
}

func TestMetricSeries_ReadAllReturnsCopy(t *testing.T) {
	s := NewMetricSeries()
	require.NoError(t, s.Append(SampleAt(1)))

	snapshot := s.ReadAll()
	snapshot[0].Loss = 99

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, Loss(1), last.Loss)
}

func TestMetricSeries_SinceAndClear(t *testing.T) {
	s := NewMetricSeries()
	for step := 1; step <= 6; step++ {
		require.NoError(t, s.Append(SampleAt(step)))
	}

	since := s.Since(4)
	require.Len(t, since, 2)
	assert.Equal(t, 5, since[0].Step)
	assert.Empty(t, s.Since(6))

	s.Clear()
	assert.Equal(t, 0, s.Len())
	_, ok := s.Last()
	assert.False(t, ok)

	// Steps restart at 1 after a clear
	assert.NoError(t, s.Append(SampleAt(1)))
}

func TestMetricSeries_ConcurrentReadWhileAppending(t *testing.T) {
	s := NewMetricSeries()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for step := 1; step <= 500; step++ {
			_ = s.Append(SampleAt(step))
		}
	}()

	for i := 0; i < 100; i++ {
		samples := s.ReadAll()
		for j := 1; j < len(samples); j++ {
			assert.Greater(t, samples[j].Step, samples[j-1].Step)
		}
	}
	wg.Wait()
	assert.Equal(t, 500, s.Len())
}

func TestLogStream_PreservesInsertionOrder(t *testing.T) {
	l := NewLogStream()
	at := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)

	l.Append(domain.NewLogEntry(at, domain.LevelInfo, "first"))
	l.Append(domain.NewLogEntry(at, domain.LevelWarn, "second"))
	l.Append(domain.NewLogEntry(at, domain.LevelSuccess, "third"))

	entries := l.ReadAll()
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "third", entries[2].Message)
	assert.Equal(t, "09:30:00", entries[0].Timestamp)

	tail := l.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "second", tail[0].Message)
	assert.Len(t, l.Tail(0), 3)

	l.Clear()
	assert.Equal(t, 0, l.Len())
}

func TestLogStream_ReplaceDoesNotAlias(t *testing.T) {
	l := NewLogStream()
	src := []domain.LogEntry{{Level: domain.LevelInfo, Message: "restored"}}

	l.Replace(src)
	src[0].Message = "mutated"

	assert.Equal(t, "restored", l.ReadAll()[0].Message)
}
