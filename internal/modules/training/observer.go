package training

import (
	"time"

	"github.com/aristath/llamaforge/internal/domain"
)

// Cause names what triggered a status transition
type Cause string

const (
	CauseStart     Cause = "start"
	CauseSettle    Cause = "settle"
	CauseInterrupt Cause = "interrupt"
	CauseResume    Cause = "resume"
	CauseComplete  Cause = "complete"
	CauseFail      Cause = "fail"
	CauseRestore   Cause = "restore"
)

// Transition describes one status change. State is a deep copy taken at the moment of
// the change, after any log entry that accompanies it.
type Transition struct {
	From  domain.RunStatus
	To    domain.RunStatus
	Cause Cause
	At    time.Time
	Step  int
	Total int
	State domain.RunState
}

// Observer is notified of controller activity in the order it happened.
// Callbacks must not call controller methods: deliveries are serialized and a
// callback that re-enters the controller can deadlock against a concurrent tick.
// Everything an observer needs is carried in the callback arguments.
type Observer interface {
	StatusChanged(t Transition)
	MetricRecorded(sample domain.MetricSample, progress float64)
	LogAppended(entry domain.LogEntry)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStatus func(Transition)
	OnMetric func(domain.MetricSample, float64)
	OnLog    func(domain.LogEntry)
}

// StatusChanged implements Observer
func (f ObserverFuncs) StatusChanged(t Transition) {
	if f.OnStatus != nil {
		f.OnStatus(t)
	}
}

// MetricRecorded implements Observer
func (f ObserverFuncs) MetricRecorded(sample domain.MetricSample, progress float64) {
	if f.OnMetric != nil {
		f.OnMetric(sample, progress)
	}
}

// LogAppended implements Observer
func (f ObserverFuncs) LogAppended(entry domain.LogEntry) {
	if f.OnLog != nil {
		f.OnLog(entry)
	}
}

// notice is one pending observer callback collected under the controller lock
type notice struct {
	transition *Transition
	sample     *domain.MetricSample
	progress   float64
	entry      *domain.LogEntry
}

func (n notice) deliver(o Observer) {
	switch {
	case n.transition != nil:
		o.StatusChanged(*n.transition)
	case n.sample != nil:
		o.MetricRecorded(*n.sample, n.progress)
	case n.entry != nil:
		o.LogAppended(*n.entry)
	}
}
