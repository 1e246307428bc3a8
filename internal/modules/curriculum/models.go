package curriculum

import (
	"errors"

	"github.com/aristath/llamaforge/internal/domain"
)

// ProviderName is the credential slot used for generative calls
const ProviderName = "gemini"

// Defaults for generation requests that leave the count unset
const (
	DefaultGenerateCount = 5
	DefaultToolCount     = 3
	MaxGenerateCount     = 50
)

var (
	// ErrLessonNotFound is returned when a lesson id is unknown
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrPreferenceNotFound is returned when a preference pair id is unknown
	ErrPreferenceNotFound = errors.New("preference pair not found")
	// ErrInvalidItem is returned for lessons or pairs missing required text
	ErrInvalidItem = errors.New("invalid curriculum item")
	// ErrInvalidImport is returned when an import document cannot be parsed
	ErrInvalidImport = errors.New("invalid curriculum import")
	// ErrMediaUnavailable is returned when no media synthesizer is wired
	ErrMediaUnavailable = errors.New("media synthesis not configured")
)

// Curriculum is the full training dataset
type Curriculum struct {
	Lessons     []domain.Lesson         `json:"lessons"`
	Preferences []domain.PreferencePair `json:"preferences"`
}

// Counts summarizes the dataset
type Counts struct {
	Lessons     int `json:"lessons"`
	Preferences int `json:"preferences"`
	Total       int `json:"total"`
}

// GenerateRequest asks the provider for lessons on a topic
type GenerateRequest struct {
	Topic          string `json:"topic"`
	Count          int    `json:"count"`
	IncludeThought *bool  `json:"includeThought,omitempty"`
}

// ToolLessonRequest asks the provider for lessons exercising a configured tool
type ToolLessonRequest struct {
	ToolID string `json:"toolId"`
	Count  int    `json:"count"`
}

// ForgeRequest asks the provider to design a run from a mission statement.
// With Apply set the plan's configuration and lessons are installed.
type ForgeRequest struct {
	Mission string `json:"mission"`
	Apply   bool   `json:"apply"`
}

// RankRequest asks the provider to pick the better of two completions.
// With Save set the verdict is stored as a preference pair.
type RankRequest struct {
	Prompt  string `json:"prompt"`
	OptionA string `json:"optionA"`
	OptionB string `json:"optionB"`
	Save    bool   `json:"save"`
}

// RankResult is the provider verdict plus the stored pair when saved
type RankResult struct {
	domain.PreferenceRanking
	Pair *domain.PreferencePair `json:"pair,omitempty"`
}

// ImportResult reports how many items an import added
type ImportResult struct {
	Lessons     int `json:"lessons"`
	Preferences int `json:"preferences"`
}

// MediaRequest asks the provider for an audio or video asset.
// With AddToDataset set the asset is stored as a lesson.
type MediaRequest struct {
	Type         domain.MediaKind `json:"type"`
	Prompt       string           `json:"prompt"`
	Voice        string           `json:"voice,omitempty"`
	AddToDataset bool             `json:"addToDataset"`
}

// MediaResult is a synthesized asset as a data URI, plus the stored lesson when added
type MediaResult struct {
	Type   domain.MediaKind `json:"type"`
	Prompt string           `json:"prompt"`
	URL    string           `json:"url"`
	Lesson *domain.Lesson   `json:"lesson,omitempty"`
}
