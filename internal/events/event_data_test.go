package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionEventData_EventType(t *testing.T) {
	tests := []struct {
		action   string
		expected EventType
	}{
		{"captured", VersionCaptured},
		{"restored", VersionRestored},
		{"deleted", VersionDeleted},
		{"archived", VersionArchived},
		{"", VersionCaptured},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			d := &VersionEventData{Action: tt.action}
			assert.Equal(t, tt.expected, d.EventType())
		})
	}
}

func TestEventWithData_RoundTripTyped(t *testing.T) {
	original := &EventWithData{
		Type:      RunStatusChanged,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Module:    "training",
		Data: &RunStatusChangedData{
			From:       "PREPARING",
			To:         "TRAINING",
			TotalSteps: 30,
		},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"to":"TRAINING"`)

	var decoded EventWithData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	data, ok := decoded.Data.(*RunStatusChangedData)
	require.True(t, ok, "expected *RunStatusChangedData, got %T", decoded.Data)
	assert.Equal(t, "PREPARING", data.From)
	assert.Equal(t, 30, data.TotalSteps)
	assert.Equal(t, "training", decoded.Module)
}

func TestEventWithData_UnknownTypeFallsBackToGeneric(t *testing.T) {
	raw := []byte(`{"type":"SOMETHING_NEW","module":"x","timestamp":"2026-03-01T12:00:00Z","data":{"k":"v"}}`)

	var decoded EventWithData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	generic, ok := decoded.Data.(*GenericEventData)
	require.True(t, ok)
	assert.Equal(t, EventType("SOMETHING_NEW"), generic.EventType())
	assert.Equal(t, "v", generic.Data["k"])
}

func TestEventWithData_NoData(t *testing.T) {
	var decoded EventWithData
	require.NoError(t, json.Unmarshal([]byte(`{"type":"LOG_APPENDED"}`), &decoded))
	assert.Nil(t, decoded.Data)
}
