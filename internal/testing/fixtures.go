package testing

import (
	"fmt"
	"time"

	"github.com/aristath/llamaforge/internal/domain"
)

// NewLessonFixtures returns n plain lessons with stable IDs
func NewLessonFixtures(n int) []domain.Lesson {
	out := make([]domain.Lesson, n)
	for i := range out {
		out[i] = domain.Lesson{
			ID:          fmt.Sprintf("lesson-%d", i+1),
			Instruction: fmt.Sprintf("Explain concept %d", i+1),
			Response:    fmt.Sprintf("Concept %d is explained like this.", i+1),
		}
	}
	return out
}

// NewPreferenceFixtures returns n preference pairs with stable IDs
func NewPreferenceFixtures(n int) []domain.PreferencePair {
	out := make([]domain.PreferencePair, n)
	for i := range out {
		out[i] = domain.PreferencePair{
			ID:       fmt.Sprintf("pref-%d", i+1),
			Prompt:   fmt.Sprintf("Prompt %d", i+1),
			Chosen:   "A concise and correct answer.",
			Rejected: "A rambling answer.",
		}
	}
	return out
}

// NewToolFixture returns a tool definition with a JSON schema for its parameters
func NewToolFixture() domain.ToolDefinition {
	return domain.ToolDefinition{
		ID:          "tool-search",
		Name:        "search",
		Description: "Search the knowledge base",
		Parameters:  `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`,
	}
}

// NewConfigurationFixture returns the default configuration with the given epoch count
// and one tool attached
func NewConfigurationFixture(epochs int) domain.Configuration {
	cfg := domain.DefaultConfiguration()
	cfg.Epochs = epochs
	cfg.Tools = []domain.ToolDefinition{NewToolFixture()}
	return cfg
}

// NewVersionFixture returns a completed version with steps metric samples
func NewVersionFixture(id string, steps int) domain.ModelVersion {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	metrics := make([]domain.MetricSample, steps)
	for i := range metrics {
		metrics[i] = domain.MetricSample{
			Step:     i + 1,
			Loss:     2.5 / float64(i+1),
			Accuracy: float64(i+1) / float64(steps),
		}
	}
	return domain.ModelVersion{
		ID:        id,
		Name:      id,
		CreatedAt: created,
		Config:    NewConfigurationFixture(1),
		Metrics:   metrics,
		Logs:      []domain.LogEntry{},
		Progress:  100,
		Status:    domain.StatusCompleted,
	}
}
