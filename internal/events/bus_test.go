package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversToSubscribersOfType(t *testing.T) {
	bus := NewBus()

	var got []*Event
	bus.Subscribe(MetricRecorded, func(e *Event) { got = append(got, e) })
	bus.Subscribe(LogAppended, func(e *Event) { t.Fatal("wrong type delivered") })

	bus.Emit(MetricRecorded, "training", map[string]interface{}{"step": 1})

	require.Len(t, got, 1)
	assert.Equal(t, MetricRecorded, got[0].Type)
	assert.Equal(t, "training", got[0].Module)
	assert.Equal(t, 1, got[0].Data["step"])
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	cancel := bus.Subscribe(ConfigChanged, func(*Event) { calls++ })

	bus.Emit(ConfigChanged, "settings", nil)
	cancel()
	cancel()
	bus.Emit(ConfigChanged, "settings", nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.SubscriberCount(ConfigChanged))
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	seen := map[EventType]int{}
	cancel := bus.SubscribeAll(AllTypes, func(e *Event) {
		mu.Lock()
		seen[e.Type]++
		mu.Unlock()
	})

	for _, et := range AllTypes {
		bus.Emit(et, "test", nil)
	}
	cancel()
	bus.Emit(RunStatusChanged, "test", nil)

	assert.Len(t, seen, len(AllTypes))
	assert.Equal(t, 1, seen[RunStatusChanged])
}

func TestBus_HandlerMaySubscribeDuringEmit(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(VersionCaptured, func(*Event) {
		bus.Subscribe(VersionDeleted, func(*Event) {})
	})

	assert.NotPanics(t, func() { bus.Emit(VersionCaptured, "versions", nil) })
	assert.Equal(t, 1, bus.SubscriberCount(VersionDeleted))
}

func TestManager_EmitTypedConvertsToMap(t *testing.T) {
	bus := NewBus()
	manager := NewManager(bus, zerolog.New(nil).Level(zerolog.Disabled))

	var got *Event
	bus.Subscribe(VersionCaptured, func(e *Event) { got = e })

	manager.EmitTyped("versions", &VersionEventData{Action: "captured", ID: "abc", Name: "v1", Progress: 100})

	require.NotNil(t, got)
	assert.Equal(t, "abc", got.Data["id"])
	assert.Equal(t, "v1", got.Data["name"])
	assert.Equal(t, float64(100), got.Data["progress"])
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus()
	manager := NewManager(bus, zerolog.New(nil).Level(zerolog.Disabled))

	var got *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { got = e })

	manager.EmitError("training", errors.New("boom"), map[string]interface{}{"step": 3})

	require.NotNil(t, got)
	assert.Equal(t, "boom", got.Data["error"])
	ctx, ok := got.Data["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), ctx["step"])
}

func TestManager_EmitTypedNil(t *testing.T) {
	manager := NewManager(NewBus(), zerolog.New(nil).Level(zerolog.Disabled))
	assert.NotPanics(t, func() { manager.EmitTyped("x", nil) })
}
