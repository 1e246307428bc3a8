package orchestrator

import (
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/aristath/llamaforge/internal/modules/training"
)

// eventObserver republishes controller activity on the event bus
type eventObserver struct {
	manager *events.Manager
}

func newEventObserver(manager *events.Manager) *eventObserver {
	return &eventObserver{manager: manager}
}

func (e *eventObserver) StatusChanged(t training.Transition) {
	e.manager.EmitTyped("training", &events.RunStatusChangedData{
		From:       string(t.From),
		To:         string(t.To),
		Step:       t.Step,
		TotalSteps: t.Total,
		Progress:   t.State.Progress,
	})
}

func (e *eventObserver) MetricRecorded(sample domain.MetricSample, progress float64) {
	e.manager.EmitTyped("training", &events.MetricRecordedData{
		Step:     sample.Step,
		Loss:     sample.Loss,
		Accuracy: sample.Accuracy,
		Progress: progress,
	})
}

func (e *eventObserver) LogAppended(entry domain.LogEntry) {
	e.manager.EmitTyped("training", &events.LogAppendedData{
		Timestamp: entry.Timestamp,
		Level:     string(entry.Level),
		Message:   entry.Message,
	})
}
