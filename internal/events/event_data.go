package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStatusChangedData contains data for RunStatusChanged events
type RunStatusChangedData struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Step       int     `json:"step"`
	TotalSteps int     `json:"total_steps"`
	Progress   float64 `json:"progress"`
}

// EventType returns the event type for RunStatusChangedData
func (d *RunStatusChangedData) EventType() EventType {
	return RunStatusChanged
}

// MetricRecordedData contains data for MetricRecorded events
type MetricRecordedData struct {
	Step     int     `json:"step"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	Progress float64 `json:"progress"`
}

// EventType returns the event type for MetricRecordedData
func (d *MetricRecordedData) EventType() EventType {
	return MetricRecorded
}

// LogAppendedData contains data for LogAppended events
type LogAppendedData struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// EventType returns the event type for LogAppendedData
func (d *LogAppendedData) EventType() EventType {
	return LogAppended
}

// VersionEventData contains data for version store events.
// Action selects the concrete event type.
type VersionEventData struct {
	Action   string  `json:"action"` // "captured", "restored", "deleted", "archived"
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Status   string  `json:"status,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Location string  `json:"location,omitempty"`
}

// EventType returns the event type for VersionEventData
func (d *VersionEventData) EventType() EventType {
	switch d.Action {
	case "restored":
		return VersionRestored
	case "deleted":
		return VersionDeleted
	case "archived":
		return VersionArchived
	default:
		return VersionCaptured
	}
}

// CurriculumChangedData contains data for CurriculumChanged events
type CurriculumChangedData struct {
	Action      string `json:"action"`
	Lessons     int    `json:"lessons"`
	Preferences int    `json:"preferences"`
}

// EventType returns the event type for CurriculumChangedData
func (d *CurriculumChangedData) EventType() EventType {
	return CurriculumChanged
}

// ConfigChangedData contains data for ConfigChanged events
type ConfigChangedData struct {
	Action string      `json:"action"`
	Value  interface{} `json:"value,omitempty"`
}

// EventType returns the event type for ConfigChangedData
func (d *ConfigChangedData) EventType() EventType {
	return ConfigChanged
}

// RuntimeStatusChangedData contains data for RuntimeStatusChanged events
type RuntimeStatusChangedData struct {
	Available bool   `json:"available"`
	Endpoint  string `json:"endpoint"`
	Models    int    `json:"models"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for RuntimeStatusChangedData
func (d *RuntimeStatusChangedData) EventType() EventType {
	return RuntimeStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case RunStatusChanged:
		eventData = &RunStatusChangedData{}
	case MetricRecorded:
		eventData = &MetricRecordedData{}
	case LogAppended:
		eventData = &LogAppendedData{}
	case VersionCaptured, VersionRestored, VersionDeleted, VersionArchived:
		eventData = &VersionEventData{}
	case CurriculumChanged:
		eventData = &CurriculumChangedData{}
	case ConfigChanged:
		eventData = &ConfigChangedData{}
	case RuntimeStatusChanged:
		eventData = &RuntimeStatusChangedData{}
	case ErrorOccurred:
		eventData = &ErrorEventData{}
	default:
		eventData = &GenericEventData{Type: aux.Type}
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
