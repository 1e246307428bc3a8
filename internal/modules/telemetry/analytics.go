package telemetry

import (
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/llamaforge/internal/domain"
)

// Summary is an aggregate view over a metric series
type Summary struct {
	Count          int     `json:"count"`
	LastStep       int     `json:"lastStep"`
	LastLoss       float64 `json:"lastLoss"`
	LastAccuracy   float64 `json:"lastAccuracy"`
	MeanLoss       float64 `json:"meanLoss"`
	StdDevLoss     float64 `json:"stdDevLoss"`
	MinLoss        float64 `json:"minLoss"`
	MaxLoss        float64 `json:"maxLoss"`
	MeanAccuracy   float64 `json:"meanAccuracy"`
	StdDevAccuracy float64 `json:"stdDevAccuracy"`
	MinAccuracy    float64 `json:"minAccuracy"`
	MaxAccuracy    float64 `json:"maxAccuracy"`
}

// Summarize computes descriptive statistics over samples.
// An empty input yields a zero Summary.
func Summarize(samples []domain.MetricSample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}

	losses, accuracies := split(samples)
	last := samples[len(samples)-1]

	meanLoss, stdLoss := stat.MeanStdDev(losses, nil)
	meanAcc, stdAcc := stat.MeanStdDev(accuracies, nil)
	if len(samples) == 1 {
		// Sample standard deviation is undefined for n=1
		stdLoss, stdAcc = 0, 0
	}

	return Summary{
		Count:          len(samples),
		LastStep:       last.Step,
		LastLoss:       last.Loss,
		LastAccuracy:   last.Accuracy,
		MeanLoss:       meanLoss,
		StdDevLoss:     stdLoss,
		MinLoss:        floats.Min(losses),
		MaxLoss:        floats.Max(losses),
		MeanAccuracy:   meanAcc,
		StdDevAccuracy: stdAcc,
		MinAccuracy:    floats.Min(accuracies),
		MaxAccuracy:    floats.Max(accuracies),
	}
}

// Smooth returns the exponential moving average of loss and accuracy with the
// given period. Steps before the first full window are omitted.
func Smooth(samples []domain.MetricSample, period int) []domain.MetricSample {
	if period < 2 || len(samples) < period {
		return domain.CloneMetrics(samples)
	}

	losses, accuracies := split(samples)
	emaLoss := talib.Ema(losses, period)
	emaAcc := talib.Ema(accuracies, period)

	out := make([]domain.MetricSample, 0, len(samples)-period+1)
	for i := period - 1; i < len(samples); i++ {
		out = append(out, domain.MetricSample{
			Step:     samples[i].Step,
			Loss:     emaLoss[i],
			Accuracy: emaAcc[i],
		})
	}
	return out
}

func split(samples []domain.MetricSample) ([]float64, []float64) {
	losses := make([]float64, len(samples))
	accuracies := make([]float64, len(samples))
	for i, s := range samples {
		losses[i] = s.Loss
		accuracies[i] = s.Accuracy
	}
	return losses, accuracies
}
