// Package telemetry holds the append-only sequences a training run produces:
// the per-step metric series and the run log, plus analytics over them.
package telemetry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aristath/llamaforge/internal/domain"
)

// ErrNonMonotonicStep is returned when a sample does not advance the step counter
var ErrNonMonotonicStep = errors.New("metric step must be strictly increasing")

// MetricSeries is an ordered, append-only sequence of metric samples.
// Reads return copies so callers may iterate while a tick appends.
type MetricSeries struct {
	mu      sync.RWMutex
	samples []domain.MetricSample
}

// NewMetricSeries creates an empty series
func NewMetricSeries() *MetricSeries {
	return &MetricSeries{samples: make([]domain.MetricSample, 0)}
}

// Append adds a sample. Steps start at 1 and must strictly increase.
func (s *MetricSeries) Append(sample domain.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := 0
	if n := len(s.samples); n > 0 {
		last = s.samples[n-1].Step
	}
	if sample.Step <= last {
		return fmt.Errorf("%w: got %d after %d", ErrNonMonotonicStep, sample.Step, last)
	}

	s.samples = append(s.samples, sample)
	return nil
}

// ReadAll returns a snapshot copy of every sample
func (s *MetricSeries) ReadAll() []domain.MetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneMetrics(s.samples)
}

// Since returns a copy of the samples with Step > step
func (s *MetricSeries) Since(step int) []domain.MetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, sample := range s.samples {
		if sample.Step > step {
			return domain.CloneMetrics(s.samples[i:])
		}
	}
	return []domain.MetricSample{}
}

// Last returns the most recent sample, if any
func (s *MetricSeries) Last() (domain.MetricSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return domain.MetricSample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Len returns the number of samples
func (s *MetricSeries) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Clear drops every sample. Only a fresh run start may call this.
func (s *MetricSeries) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = make([]domain.MetricSample, 0)
}

// Replace installs a copy of samples as the full series (used by restore).
func (s *MetricSeries) Replace(samples []domain.MetricSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = domain.CloneMetrics(samples)
}

// LogStream is an ordered, append-only run log. Insertion order is chronological order.
type LogStream struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
}

// NewLogStream creates an empty log stream
func NewLogStream() *LogStream {
	return &LogStream{entries: make([]domain.LogEntry, 0)}
}

// Append adds an entry at the end of the stream
func (l *LogStream) Append(entry domain.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// ReadAll returns a snapshot copy of every entry
func (l *LogStream) ReadAll() []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.CloneLogs(l.entries)
}

// Tail returns a copy of the last n entries (all of them when n <= 0)
func (l *LogStream) Tail(n int) []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n >= len(l.entries) {
		return domain.CloneLogs(l.entries)
	}
	return domain.CloneLogs(l.entries[len(l.entries)-n:])
}

// Len returns the number of entries
func (l *LogStream) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops every entry. Only a fresh run start may call this.
func (l *LogStream) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]domain.LogEntry, 0)
}

// Replace installs a copy of entries as the full stream (used by restore).
func (l *LogStream) Replace(entries []domain.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = domain.CloneLogs(entries)
}
