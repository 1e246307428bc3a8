package telemetry

import (
	"fmt"
	"math"

	"github.com/aristath/llamaforge/internal/domain"
)

// Decay curve constants of the simulated run.
const (
	InitialLoss     = 2.5
	LossDecay       = 0.97
	LossFloor       = 0.01
	BaseAccuracy    = 0.4
	AccuracyGain    = 0.6
	AccuracyDecay   = 0.95
	AccuracyCeiling = 0.99

	// SummaryEvery is how often (in steps) a tick writes an info log line.
	SummaryEvery = 5
)

// Loss is the simulated loss at step: max(0.01, 2.5 * 0.97^step)
func Loss(step int) float64 {
	return math.Max(LossFloor, InitialLoss*math.Pow(LossDecay, float64(step)))
}

// Accuracy is the simulated accuracy at step: min(0.99, 0.4 + 0.6 * (1 - 0.95^step))
func Accuracy(step int) float64 {
	return math.Min(AccuracyCeiling, BaseAccuracy+AccuracyGain*(1-math.Pow(AccuracyDecay, float64(step))))
}

// SampleAt builds the metric sample for step
func SampleAt(step int) domain.MetricSample {
	return domain.MetricSample{
		Step:     step,
		Loss:     Loss(step),
		Accuracy: Accuracy(step),
	}
}

// Progress is step/total as a percentage clamped to [0, 100]
func Progress(step, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(step) / float64(total) * 100
	return math.Min(100, math.Max(0, p))
}

// CycleSummary formats the periodic info line for a sample
func CycleSummary(sample domain.MetricSample) string {
	return fmt.Sprintf("Cycle %d | Convergence: %.1f%% | Error: %.4f",
		sample.Step/domain.StepsPerEpoch+1, sample.Accuracy*100, sample.Loss)
}
