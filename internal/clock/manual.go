package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler whose time only moves when Advance is called.
// Callbacks run synchronously on the goroutine calling Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	id        int
	due       time.Time
	period    time.Duration
	fn        func()
	cancelled bool
}

// NewManual creates a manual scheduler starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Every schedules fn every d of virtual time
func (m *Manual) Every(d time.Duration, fn func()) Cancel {
	return m.schedule(d, d, fn)
}

// After schedules fn once after d of virtual time
func (m *Manual) After(d time.Duration, fn func()) Cancel {
	return m.schedule(d, 0, fn)
}

func (m *Manual) schedule(delay, period time.Duration, fn func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{id: m.seq, due: m.now.Add(delay), period: period, fn: fn}
	m.pending = append(m.pending, t)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		t.cancelled = true
	}
}

// Advance moves virtual time forward by d, firing every callback that falls due
// in order of due time (ties broken by scheduling order).
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// Pending returns the number of live scheduled callbacks
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// nextDue pops the earliest live timer due at or before target and moves the clock to it.
// Periodic timers are re-armed before their callback runs.
func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.pending[:0]
	for _, t := range m.pending {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.pending = live

	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due.Equal(m.pending[j].due) {
			return m.pending[i].id < m.pending[j].id
		}
		return m.pending[i].due.Before(m.pending[j].due)
	})

	if len(m.pending) == 0 || m.pending[0].due.After(target) {
		return nil
	}

	t := m.pending[0]
	m.now = t.due
	if t.period > 0 {
		t.due = t.due.Add(t.period)
	} else {
		t.cancelled = true
	}
	return t
}
