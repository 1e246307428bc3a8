package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/llamaforge/internal/domain"
)

func simulated(n int) []domain.MetricSample {
	out := make([]domain.MetricSample, 0, n)
	for step := 1; step <= n; step++ {
		out = append(out, SampleAt(step))
	}
	return out
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSummarize_SimulatedRun(t *testing.T) {
	samples := simulated(20)
	s := Summarize(samples)

	assert.Equal(t, 20, s.Count)
	assert.Equal(t, 20, s.LastStep)
	assert.InDelta(t, Loss(20), s.LastLoss, 1e-12)
	assert.InDelta(t, Loss(20), s.MinLoss, 1e-12)
	assert.InDelta(t, Loss(1), s.MaxLoss, 1e-12)
	assert.InDelta(t, Accuracy(1), s.MinAccuracy, 1e-12)
	assert.InDelta(t, Accuracy(20), s.MaxAccuracy, 1e-12)
	assert.Greater(t, s.StdDevLoss, 0.0)
	assert.Greater(t, s.MeanLoss, s.MinLoss)
	assert.Less(t, s.MeanLoss, s.MaxLoss)
}

func TestSummarize_SingleSample(t *testing.T) {
	s := Summarize(simulated(1))
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 0.0, s.StdDevLoss)
	assert.InDelta(t, Loss(1), s.MeanLoss, 1e-12)
}

func TestSmooth_ConstantSeriesStaysConstant(t *testing.T) {
	samples := make([]domain.MetricSample, 10)
	for i := range samples {
		samples[i] = domain.MetricSample{Step: i + 1, Loss: 1.0, Accuracy: 0.5}
	}

	smoothed := Smooth(samples, 4)
	require.Len(t, smoothed, 7)
	assert.Equal(t, 4, smoothed[0].Step)
	for _, s := range smoothed {
		assert.InDelta(t, 1.0, s.Loss, 1e-9)
		assert.InDelta(t, 0.5, s.Accuracy, 1e-9)
	}
}

func TestSmooth_ShortSeriesPassesThrough(t *testing.T) {
	samples := simulated(3)
	assert.Equal(t, samples, Smooth(samples, 5))
	assert.Equal(t, samples, Smooth(samples, 1))
}

func TestSmooth_TracksDecay(t *testing.T) {
	smoothed := Smooth(simulated(30), 5)
	require.NotEmpty(t, smoothed)
	for i := 1; i < len(smoothed); i++ {
		assert.Less(t, smoothed[i].Loss, smoothed[i-1].Loss)
	}
}
