package training

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserver_TracksRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewMetricsObserver(reg)
	require.NoError(t, err)

	c, sched := newTestController(t, nil)
	c.AddObserver(obs)

	require.NoError(t, c.Start(twoEpochConfig(), 5))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.status.WithLabelValues("PREPARING")))
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.status.WithLabelValues("IDLE")))

	settle(sched)
	ticks(sched, 6)
	assert.Equal(t, 6.0, testutil.ToFloat64(obs.step))
	assert.Equal(t, 30.0, testutil.ToFloat64(obs.progress))
	assert.Equal(t, 6.0, testutil.ToFloat64(obs.steps))

	require.NoError(t, c.Interrupt())
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.status.WithLabelValues("PAUSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.transitions.WithLabelValues("PAUSED", "interrupt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.logs.WithLabelValues("warn")))

	require.NoError(t, c.Resume())
	ticks(sched, 14)
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.status.WithLabelValues("COMPLETED")))
	assert.Equal(t, 20.0, testutil.ToFloat64(obs.steps))
	assert.InDelta(t, 1.3595, testutil.ToFloat64(obs.loss), 1e-4)
}

func TestMetricsObserver_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetricsObserver(reg)
	require.NoError(t, err)

	_, err = NewMetricsObserver(reg)
	assert.Error(t, err)
}
