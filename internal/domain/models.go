// Package domain provides core domain models and types.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StepsPerEpoch is the number of simulated ticks that make up one epoch.
const StepsPerEpoch = 10

// TrainingMethod is the tuning objective of a run
type TrainingMethod string

const (
	// MethodSFT is supervised instruction fine-tuning
	MethodSFT TrainingMethod = "SFT"
	// MethodDPO is direct preference optimization
	MethodDPO TrainingMethod = "DPO"
	// MethodORPO is odds-ratio preference optimization
	MethodORPO TrainingMethod = "ORPO"
)

// Valid reports whether m is one of the supported methods
func (m TrainingMethod) Valid() bool {
	switch m {
	case MethodSFT, MethodDPO, MethodORPO:
		return true
	}
	return false
}

// Allowed discrete hyperparameter values offered by the studio.
var (
	BatchSizes     = []int{1, 4, 8, 16}
	ContextLengths = []int{1024, 2048, 4096, 8192}
	VisionEncoders = []string{
		"CLIP-ViT-L/14",
		"SigLIP-SO400M",
		"OpenCLIP-ViT-H/14",
		"EVA-CLIP-G",
	}
	// SuggestedBaseModels is used when no local runtime reports its installed models.
	SuggestedBaseModels = []string{
		"llama3:8b",
		"llama3:70b",
		"mistral:v0.3",
		"phi3:latest",
		"gemma2:9b",
		"codegemma:latest",
		"qwen2:7b",
		"llama3.2-vision:latest",
		"moondream:latest",
		"ultravox:latest",
	}
)

// ErrInvalidConfig is returned when a Configuration fails validation
var ErrInvalidConfig = errors.New("invalid training configuration")

// ToolDefinition describes a callable capability attached to a Configuration.
// Parameters holds the parameter schema as raw text (usually JSON schema).
type ToolDefinition struct {
	ID          string `json:"id" msgpack:"id" toml:"id"`
	Name        string `json:"name" msgpack:"name" toml:"name"`
	Description string `json:"description" msgpack:"description" toml:"description"`
	Parameters  string `json:"parameters" msgpack:"parameters" toml:"parameters"`
}

// Configuration describes a training run
type Configuration struct {
	BaseModel      string           `json:"baseModel" msgpack:"base_model" toml:"base_model"`
	Epochs         int              `json:"epochs" msgpack:"epochs" toml:"epochs"`
	LearningRate   float64          `json:"learningRate" msgpack:"learning_rate" toml:"learning_rate"`
	BatchSize      int              `json:"batchSize" msgpack:"batch_size" toml:"batch_size"`
	ContextLength  int              `json:"contextLength" msgpack:"context_length" toml:"context_length"`
	VisionEnabled  bool             `json:"visionEnabled" msgpack:"vision_enabled" toml:"vision_enabled"`
	VisionEncoder  string           `json:"visionEncoder" msgpack:"vision_encoder" toml:"vision_encoder"`
	AudioEnabled   bool             `json:"audioEnabled,omitempty" msgpack:"audio_enabled" toml:"audio_enabled"`
	VideoEnabled   bool             `json:"videoEnabled,omitempty" msgpack:"video_enabled" toml:"video_enabled"`
	Tools          []ToolDefinition `json:"tools" msgpack:"tools" toml:"tools"`
	TrainingMethod TrainingMethod   `json:"trainingMethod" msgpack:"training_method" toml:"training_method"`
	ReasoningMode  bool             `json:"reasoningMode" msgpack:"reasoning_mode" toml:"reasoning_mode"`
}

// DefaultConfiguration returns the studio's out-of-the-box configuration
func DefaultConfiguration() Configuration {
	return Configuration{
		BaseModel:      "llama3:8b",
		Epochs:         3,
		LearningRate:   0.00005,
		BatchSize:      4,
		ContextLength:  2048,
		VisionEnabled:  false,
		VisionEncoder:  VisionEncoders[0],
		Tools:          []ToolDefinition{},
		TrainingMethod: MethodSFT,
		ReasoningMode:  true,
	}
}

// TotalSteps is the number of ticks a run with this configuration takes
func (c Configuration) TotalSteps() int {
	return c.Epochs * StepsPerEpoch
}

// Clone returns a deep copy. The tool slice is never shared.
func (c Configuration) Clone() Configuration {
	out := c
	out.Tools = make([]ToolDefinition, len(c.Tools))
	copy(out.Tools, c.Tools)
	return out
}

// Validate checks every field against the allowed ranges
func (c Configuration) Validate() error {
	var problems []string

	if strings.TrimSpace(c.BaseModel) == "" {
		problems = append(problems, "base model is required")
	}
	if c.Epochs < 1 {
		problems = append(problems, "epochs must be at least 1")
	}
	if c.LearningRate <= 0 {
		problems = append(problems, "learning rate must be positive")
	}
	if !containsInt(BatchSizes, c.BatchSize) {
		problems = append(problems, fmt.Sprintf("batch size %d not in %v", c.BatchSize, BatchSizes))
	}
	if !containsInt(ContextLengths, c.ContextLength) {
		problems = append(problems, fmt.Sprintf("context length %d not in %v", c.ContextLength, ContextLengths))
	}
	if c.VisionEnabled && !containsString(VisionEncoders, c.VisionEncoder) {
		problems = append(problems, fmt.Sprintf("unknown vision encoder %q", c.VisionEncoder))
	}
	if !c.TrainingMethod.Valid() {
		problems = append(problems, fmt.Sprintf("unknown training method %q", c.TrainingMethod))
	}
	seen := make(map[string]bool, len(c.Tools))
	for _, tool := range c.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			problems = append(problems, "tool name is required")
			continue
		}
		if seen[tool.ID] {
			problems = append(problems, fmt.Sprintf("duplicate tool id %q", tool.ID))
		}
		seen[tool.ID] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// RunStatus is the authoritative state of the training simulator
type RunStatus string

const (
	StatusIdle      RunStatus = "IDLE"
	StatusPreparing RunStatus = "PREPARING"
	StatusTraining  RunStatus = "TRAINING"
	StatusPaused    RunStatus = "PAUSED"
	StatusCompleted RunStatus = "COMPLETED"
	StatusFailed    RunStatus = "FAILED"
)

// Valid reports whether s is a known status
func (s RunStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusPreparing, StatusTraining, StatusPaused, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanStartFresh reports whether a new run may begin from this status
func (s RunStatus) CanStartFresh() bool {
	return s == StatusIdle || s == StatusCompleted || s == StatusFailed
}

// Scheduled reports whether a settle timer or tick loop is armed in this status
func (s RunStatus) Scheduled() bool {
	return s == StatusPreparing || s == StatusTraining
}

// MetricSample is one telemetry point produced by a tick
type MetricSample struct {
	Step     int     `json:"step" msgpack:"step"`
	Loss     float64 `json:"loss" msgpack:"loss"`
	Accuracy float64 `json:"accuracy" msgpack:"accuracy"`
}

// LogLevel is the severity of a LogEntry
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarn    LogLevel = "warn"
	LevelError   LogLevel = "error"
	LevelSuccess LogLevel = "success"
)

// LogTimestampFormat is the display format of LogEntry timestamps
const LogTimestampFormat = "15:04:05"

// LogEntry is a leveled message appended during a run
type LogEntry struct {
	Timestamp string   `json:"timestamp" msgpack:"timestamp"`
	Level     LogLevel `json:"level" msgpack:"level"`
	Message   string   `json:"message" msgpack:"message"`
}

// NewLogEntry stamps a message with the display time of at
func NewLogEntry(at time.Time, level LogLevel, message string) LogEntry {
	return LogEntry{
		Timestamp: at.Format(LogTimestampFormat),
		Level:     level,
		Message:   message,
	}
}

// RunState is the restorable state of the training simulator
type RunState struct {
	Config   Configuration  `json:"config" msgpack:"config"`
	Metrics  []MetricSample `json:"metrics" msgpack:"metrics"`
	Logs     []LogEntry     `json:"logs" msgpack:"logs"`
	Progress float64        `json:"progress" msgpack:"progress"`
	Status   RunStatus      `json:"status" msgpack:"status"`
}

// Clone returns a deep copy
func (s RunState) Clone() RunState {
	return RunState{
		Config:   s.Config.Clone(),
		Metrics:  CloneMetrics(s.Metrics),
		Logs:     CloneLogs(s.Logs),
		Progress: s.Progress,
		Status:   s.Status,
	}
}

// ModelVersion is an immutable snapshot of a run
type ModelVersion struct {
	ID        string         `json:"id" msgpack:"id"`
	Name      string         `json:"name" msgpack:"name"`
	CreatedAt time.Time      `json:"timestamp" msgpack:"created_at"`
	Config    Configuration  `json:"config" msgpack:"config"`
	Metrics   []MetricSample `json:"metrics" msgpack:"metrics"`
	Logs      []LogEntry     `json:"logs" msgpack:"logs"`
	Progress  float64        `json:"progress" msgpack:"progress"`
	Status    RunStatus      `json:"status" msgpack:"status"`
}

// Clone returns a deep copy that shares no slices with v
func (v ModelVersion) Clone() ModelVersion {
	out := v
	out.Config = v.Config.Clone()
	out.Metrics = CloneMetrics(v.Metrics)
	out.Logs = CloneLogs(v.Logs)
	return out
}

// State extracts the restorable part of v
func (v ModelVersion) State() RunState {
	return RunState{
		Config:   v.Config,
		Metrics:  v.Metrics,
		Logs:     v.Logs,
		Progress: v.Progress,
		Status:   v.Status,
	}.Clone()
}

// VersionSummary is the lightweight listing form of a version
type VersionSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"timestamp"`
	BaseModel string    `json:"baseModel"`
	Steps     int       `json:"steps"`
	Progress  float64   `json:"progress"`
	Status    RunStatus `json:"status"`
}

// Summary reduces v to its listing form
func (v ModelVersion) Summary() VersionSummary {
	return VersionSummary{
		ID:        v.ID,
		Name:      v.Name,
		CreatedAt: v.CreatedAt,
		BaseModel: v.Config.BaseModel,
		Steps:     len(v.Metrics),
		Progress:  v.Progress,
		Status:    v.Status,
	}
}

// CloneMetrics copies a metric slice. A nil input yields an empty slice.
func CloneMetrics(in []MetricSample) []MetricSample {
	out := make([]MetricSample, len(in))
	copy(out, in)
	return out
}

// CloneLogs copies a log slice. A nil input yields an empty slice.
func CloneLogs(in []LogEntry) []LogEntry {
	out := make([]LogEntry, len(in))
	copy(out, in)
	return out
}

func containsInt(values []int, v int) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
