// Package clock provides the scheduling primitives the training simulator runs on:
// a wall-clock scheduler for production and a manually advanced one for tests.
package clock

import (
	"sync"
	"time"
)

// Cancel stops a scheduled callback. It never blocks and is safe to call twice.
type Cancel func()

// Scheduler runs callbacks after a delay or periodically. Periodic callbacks of one
// schedule never overlap: the next run starts only after the previous one returns.
type Scheduler interface {
	Now() time.Time
	Every(d time.Duration, fn func()) Cancel
	After(d time.Duration, fn func()) Cancel
}

// Wall is a Scheduler backed by real timers
type Wall struct{}

// NewWall creates a wall-clock scheduler
func NewWall() *Wall {
	return &Wall{}
}

// Now returns the current time
func (w *Wall) Now() time.Time {
	return time.Now()
}

// Every runs fn every d on a dedicated goroutine until cancelled
func (w *Wall) Every(d time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// Prefer stop when both are ready
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}
}

// After runs fn once after d unless cancelled first
func (w *Wall) After(d time.Duration, fn func()) Cancel {
	timer := time.AfterFunc(d, fn)
	return func() {
		timer.Stop()
	}
}
