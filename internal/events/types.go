// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Run lifecycle and telemetry
	RunStatusChanged EventType = "RUN_STATUS_CHANGED"
	MetricRecorded   EventType = "METRIC_RECORDED"
	LogAppended      EventType = "LOG_APPENDED"

	// Version store
	VersionCaptured EventType = "VERSION_CAPTURED"
	VersionRestored EventType = "VERSION_RESTORED"
	VersionDeleted  EventType = "VERSION_DELETED"
	VersionArchived EventType = "VERSION_ARCHIVED"

	// Studio state
	CurriculumChanged    EventType = "CURRICULUM_CHANGED"
	ConfigChanged        EventType = "CONFIG_CHANGED"
	RuntimeStatusChanged EventType = "RUNTIME_STATUS_CHANGED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type a stream subscriber can receive
var AllTypes = []EventType{
	RunStatusChanged,
	MetricRecorded,
	LogAppended,
	VersionCaptured,
	VersionRestored,
	VersionDeleted,
	VersionArchived,
	CurriculumChanged,
	ConfigChanged,
	RuntimeStatusChanged,
	ErrorOccurred,
}

// Event represents a system event as delivered to bus subscribers
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
