package training

import (
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

var allStatuses = []domain.RunStatus{
	domain.StatusIdle,
	domain.StatusPreparing,
	domain.StatusTraining,
	domain.StatusPaused,
	domain.StatusCompleted,
	domain.StatusFailed,
}

// MetricsObserver exports controller activity as Prometheus metrics
type MetricsObserver struct {
	status      *prometheus.GaugeVec
	step        prometheus.Gauge
	progress    prometheus.Gauge
	loss        prometheus.Gauge
	accuracy    prometheus.Gauge
	steps       prometheus.Counter
	transitions *prometheus.CounterVec
	logs        *prometheus.CounterVec
}

// NewMetricsObserver creates the collectors and registers them with reg
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	m := &MetricsObserver{
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "llamaforge",
			Subsystem: "run",
			Name:      "status",
			Help:      "1 for the current run status, 0 otherwise.",
		}, []string{"status"}),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llamaforge",
			Subsystem: "run",
			Name:      "step",
			Help:      "Last recorded step of the current run.",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llamaforge",
			Subsystem: "run",
			Name:      "progress_percent",
			Help:      "Completion of the current run in percent.",
		}),
		loss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llamaforge",
			Subsystem: "run",
			Name:      "loss",
			Help:      "Loss of the last recorded sample.",
		}),
		accuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llamaforge",
			Subsystem: "run",
			Name:      "accuracy",
			Help:      "Accuracy of the last recorded sample.",
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llamaforge",
			Subsystem: "run",
			Name:      "steps_total",
			Help:      "Steps recorded across all runs.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llamaforge",
			Subsystem: "run",
			Name:      "transitions_total",
			Help:      "Status transitions by target status and cause.",
		}, []string{"to", "cause"}),
		logs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llamaforge",
			Subsystem: "run",
			Name:      "log_entries_total",
			Help:      "Run log entries by level.",
		}, []string{"level"}),
	}

	for _, c := range []prometheus.Collector{
		m.status, m.step, m.progress, m.loss, m.accuracy, m.steps, m.transitions, m.logs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	m.setStatus(domain.StatusIdle)
	return m, nil
}

// StatusChanged implements Observer
func (m *MetricsObserver) StatusChanged(t Transition) {
	m.setStatus(t.To)
	m.transitions.WithLabelValues(string(t.To), string(t.Cause)).Inc()
	m.step.Set(float64(t.Step))
	m.progress.Set(t.State.Progress)
}

// MetricRecorded implements Observer
func (m *MetricsObserver) MetricRecorded(sample domain.MetricSample, progress float64) {
	m.steps.Inc()
	m.step.Set(float64(sample.Step))
	m.progress.Set(progress)
	m.loss.Set(sample.Loss)
	m.accuracy.Set(sample.Accuracy)
}

// LogAppended implements Observer
func (m *MetricsObserver) LogAppended(entry domain.LogEntry) {
	m.logs.WithLabelValues(string(entry.Level)).Inc()
}

func (m *MetricsObserver) setStatus(current domain.RunStatus) {
	for _, s := range allStatuses {
		v := 0.0
		if s == current {
			v = 1
		}
		m.status.WithLabelValues(string(s)).Set(v)
	}
}
