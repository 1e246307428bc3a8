package curriculum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Generator is the generative provider. The API key is passed on every call.
type Generator interface {
	GenerateLessons(ctx context.Context, apiKey, topic string, count int, includeThought bool) ([]domain.Lesson, error)
	GenerateToolLessons(ctx context.Context, apiKey string, tool domain.ToolDefinition, count int) ([]domain.Lesson, error)
	VerifyDataset(ctx context.Context, apiKey string, lessons []domain.Lesson) ([]domain.VerificationResult, error)
	ForgePlan(ctx context.Context, apiKey, mission string, availableModels []string) (domain.ForgePlan, error)
	RankPreference(ctx context.Context, apiKey, prompt, optionA, optionB string) (domain.PreferenceRanking, error)
}

// MediaSynthesizer renders audio and video assets. Results are data URIs.
type MediaSynthesizer interface {
	SynthesizeAudio(ctx context.Context, apiKey, text, voice string) (string, error)
	SynthesizeVideo(ctx context.Context, apiKey, prompt string) (string, error)
}

// CredentialSource supplies provider API keys
type CredentialSource interface {
	Get(provider string) (string, error)
}

// ConfigStore reads and writes the current training configuration
type ConfigStore interface {
	GetConfig() (domain.Configuration, error)
	UpdateConfig(cfg domain.Configuration) (domain.Configuration, error)
	FindTool(id string) (domain.ToolDefinition, error)
}

// ModelLister reports base models installed on the local runtime
type ModelLister interface {
	ModelNames(ctx context.Context) ([]string, error)
}

// Service owns the curriculum and the provider-assisted operations on it
type Service struct {
	repo         *Repository
	generator    Generator
	credentials  CredentialSource
	config       ConfigStore
	models       ModelLister
	media        MediaSynthesizer
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a curriculum service. models may be nil, in which case forge
// plans choose from the suggested base models.
func NewService(
	repo *Repository,
	generator Generator,
	credentials CredentialSource,
	config ConfigStore,
	models ModelLister,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		generator:    generator,
		credentials:  credentials,
		config:       config,
		models:       models,
		eventManager: eventManager,
		log:          log.With().Str("service", "curriculum").Logger(),
	}
}

// SetMediaSynthesizer enables SynthesizeMedia
func (s *Service) SetMediaSynthesizer(media MediaSynthesizer) {
	s.media = media
}

// Snapshot returns the whole curriculum
func (s *Service) Snapshot() (Curriculum, error) {
	lessons, err := s.repo.ListLessons()
	if err != nil {
		return Curriculum{}, err
	}
	prefs, err := s.repo.ListPreferences()
	if err != nil {
		return Curriculum{}, err
	}
	return Curriculum{Lessons: lessons, Preferences: prefs}, nil
}

// Lessons returns every lesson in insertion order
func (s *Service) Lessons() ([]domain.Lesson, error) {
	return s.repo.ListLessons()
}

// Counts returns the dataset counters
func (s *Service) Counts() (Counts, error) {
	lessons, prefs, err := s.repo.Counts()
	if err != nil {
		return Counts{}, err
	}
	return Counts{Lessons: lessons, Preferences: prefs, Total: lessons + prefs}, nil
}

// DatasetSize is the number of lessons a run trains on. Preference pairs are
// reported by Counts but never make an empty curriculum startable.
func (s *Service) DatasetSize() (int, error) {
	lessons, _, err := s.repo.Counts()
	if err != nil {
		return 0, err
	}
	return lessons, nil
}

// AddLessons validates and appends lessons, assigning ids where missing
func (s *Service) AddLessons(lessons []domain.Lesson) ([]domain.Lesson, error) {
	prepared, err := prepareLessons(lessons)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertLessons(prepared); err != nil {
		return nil, err
	}
	s.emit("lessons_added", len(prepared), 0)
	return prepared, nil
}

// DeleteLesson removes a lesson
func (s *Service) DeleteLesson(id string) error {
	deleted, err := s.repo.DeleteLesson(id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrLessonNotFound, id)
	}
	s.emit("lesson_deleted", 1, 0)
	return nil
}

// AddPreferences validates and appends preference pairs
func (s *Service) AddPreferences(pairs []domain.PreferencePair) ([]domain.PreferencePair, error) {
	prepared, err := preparePreferences(pairs)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertPreferences(prepared); err != nil {
		return nil, err
	}
	s.emit("preferences_added", 0, len(prepared))
	return prepared, nil
}

// DeletePreference removes a preference pair
func (s *Service) DeletePreference(id string) error {
	deleted, err := s.repo.DeletePreference(id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrPreferenceNotFound, id)
	}
	s.emit("preference_deleted", 0, 1)
	return nil
}

// Clear removes the whole curriculum
func (s *Service) Clear() error {
	if err := s.repo.Clear(); err != nil {
		return err
	}
	s.log.Info().Msg("Curriculum cleared")
	s.emit("cleared", 0, 0)
	return nil
}

// Import appends items from a JSON document. Two shapes are accepted: a bare array
// of lessons (the export format of the original studio) or an object with lessons
// and preferences arrays. Imported ids are kept unless they collide.
func (s *Service) Import(data []byte) (ImportResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ImportResult{}, fmt.Errorf("%w: empty document", ErrInvalidImport)
	}

	var doc Curriculum
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &doc.Lessons); err != nil {
			return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
		}
	case '{':
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
		}
	default:
		return ImportResult{}, fmt.Errorf("%w: expected a JSON array or object", ErrInvalidImport)
	}

	existing, err := s.Snapshot()
	if err != nil {
		return ImportResult{}, err
	}
	taken := make(map[string]bool, len(existing.Lessons)+len(existing.Preferences))
	for _, l := range existing.Lessons {
		taken[l.ID] = true
	}
	for _, p := range existing.Preferences {
		taken[p.ID] = true
	}
	for i := range doc.Lessons {
		if taken[doc.Lessons[i].ID] {
			doc.Lessons[i].ID = ""
		}
	}
	for i := range doc.Preferences {
		if taken[doc.Preferences[i].ID] {
			doc.Preferences[i].ID = ""
		}
	}

	lessons, err := prepareLessons(doc.Lessons)
	if err != nil {
		return ImportResult{}, err
	}
	prefs, err := preparePreferences(doc.Preferences)
	if err != nil {
		return ImportResult{}, err
	}
	if err := s.repo.InsertLessons(lessons); err != nil {
		return ImportResult{}, err
	}
	if err := s.repo.InsertPreferences(prefs); err != nil {
		return ImportResult{}, err
	}

	s.log.Info().Int("lessons", len(lessons)).Int("preferences", len(prefs)).Msg("Curriculum imported")
	s.emit("imported", len(lessons), len(prefs))
	return ImportResult{Lessons: len(lessons), Preferences: len(prefs)}, nil
}

// Export renders the curriculum as indented JSON. Without preference pairs the
// output is a bare lesson array, which Import reads back.
func (s *Service) Export() ([]byte, error) {
	snapshot, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	if len(snapshot.Preferences) == 0 {
		return json.MarshalIndent(snapshot.Lessons, "", "  ")
	}
	return json.MarshalIndent(snapshot, "", "  ")
}

// Generate asks the provider for lessons and appends them. A nil IncludeThought
// follows the reasoning mode of the current configuration.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) ([]domain.Lesson, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidItem)
	}
	count := clampCount(req.Count, DefaultGenerateCount)

	includeThought := false
	if req.IncludeThought != nil {
		includeThought = *req.IncludeThought
	} else if cfg, err := s.config.GetConfig(); err == nil {
		includeThought = cfg.ReasoningMode
	}

	apiKey, err := s.credentials.Get(ProviderName)
	if err != nil {
		return nil, err
	}
	generated, err := s.generator.GenerateLessons(ctx, apiKey, topic, count, includeThought)
	if err != nil {
		return nil, fmt.Errorf("lesson generation failed: %w", err)
	}

	s.log.Info().Str("topic", topic).Int("requested", count).Int("received", len(generated)).Msg("Lessons generated")
	return s.AddLessons(generated)
}

// GenerateForTool asks the provider for lessons that exercise a configured tool
func (s *Service) GenerateForTool(ctx context.Context, req ToolLessonRequest) ([]domain.Lesson, error) {
	tool, err := s.config.FindTool(req.ToolID)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.credentials.Get(ProviderName)
	if err != nil {
		return nil, err
	}
	generated, err := s.generator.GenerateToolLessons(ctx, apiKey, tool, clampCount(req.Count, DefaultToolCount))
	if err != nil {
		return nil, fmt.Errorf("tool lesson generation failed: %w", err)
	}
	return s.AddLessons(generated)
}

// Verify asks the provider to review every lesson
func (s *Service) Verify(ctx context.Context) ([]domain.VerificationResult, error) {
	lessons, err := s.repo.ListLessons()
	if err != nil {
		return nil, err
	}
	if len(lessons) == 0 {
		return []domain.VerificationResult{}, nil
	}

	apiKey, err := s.credentials.Get(ProviderName)
	if err != nil {
		return nil, err
	}
	results, err := s.generator.VerifyDataset(ctx, apiKey, lessons)
	if err != nil {
		return nil, fmt.Errorf("dataset verification failed: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Status != "pass" {
			failed++
		}
	}
	s.log.Info().Int("reviewed", len(results)).Int("failed", failed).Msg("Curriculum verified")
	return results, nil
}

// ForgePlan asks the provider to design a run. With Apply set the plan's
// configuration replaces the current one, keeping its tools, method and reasoning
// mode, and the plan's lessons are appended.
func (s *Service) ForgePlan(ctx context.Context, req ForgeRequest) (domain.ForgePlan, error) {
	mission := strings.TrimSpace(req.Mission)
	if mission == "" {
		return domain.ForgePlan{}, fmt.Errorf("%w: mission is required", ErrInvalidItem)
	}

	apiKey, err := s.credentials.Get(ProviderName)
	if err != nil {
		return domain.ForgePlan{}, err
	}

	var available []string
	if s.models != nil {
		if names, err := s.models.ModelNames(ctx); err != nil {
			s.log.Debug().Err(err).Msg("Local runtime models unavailable, using suggestions")
		} else {
			available = names
		}
	}

	plan, err := s.generator.ForgePlan(ctx, apiKey, mission, available)
	if err != nil {
		return domain.ForgePlan{}, fmt.Errorf("forge plan failed: %w", err)
	}
	if !req.Apply {
		return plan, nil
	}

	current, err := s.config.GetConfig()
	if err != nil {
		return domain.ForgePlan{}, err
	}
	cfg := plan.Config.Clone()
	cfg.Tools = current.Clone().Tools
	cfg.TrainingMethod = current.TrainingMethod
	cfg.ReasoningMode = current.ReasoningMode
	applied, err := s.config.UpdateConfig(cfg)
	if err != nil {
		return domain.ForgePlan{}, err
	}
	plan.Config = applied

	lessons, err := s.AddLessons(plan.Lessons)
	if err != nil {
		return domain.ForgePlan{}, err
	}
	plan.Lessons = lessons

	s.log.Info().Str("base_model", applied.BaseModel).Int("lessons", len(lessons)).Msg("Forge plan applied")
	return plan, nil
}

// RankPreference asks the provider which option is better. With Save set the
// winner becomes the chosen side of a new preference pair.
func (s *Service) RankPreference(ctx context.Context, req RankRequest) (RankResult, error) {
	if strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.OptionA) == "" || strings.TrimSpace(req.OptionB) == "" {
		return RankResult{}, fmt.Errorf("%w: prompt and both options are required", ErrInvalidItem)
	}

	apiKey, err := s.credentials.Get(ProviderName)
	if err != nil {
		return RankResult{}, err
	}
	ranking, err := s.generator.RankPreference(ctx, apiKey, req.Prompt, req.OptionA, req.OptionB)
	if err != nil {
		return RankResult{}, fmt.Errorf("preference ranking failed: %w", err)
	}

	result := RankResult{PreferenceRanking: ranking}
	if !req.Save {
		return result, nil
	}

	pair := domain.PreferencePair{Prompt: req.Prompt, Chosen: req.OptionA, Rejected: req.OptionB, Critique: ranking.Critique}
	if ranking.Winner == "B" {
		pair.Chosen, pair.Rejected = req.OptionB, req.OptionA
	}
	saved, err := s.AddPreferences([]domain.PreferencePair{pair})
	if err != nil {
		return RankResult{}, err
	}
	result.Pair = &saved[0]
	return result, nil
}

// SynthesizeMedia asks the provider for an audio or video asset. With AddToDataset
// set the asset becomes a lesson carrying the data URI in its audio or video field.
func (s *Service) SynthesizeMedia(ctx context.Context, req MediaRequest) (MediaResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if !req.Type.Valid() {
		return MediaResult{}, fmt.Errorf("%w: media type must be audio or video", ErrInvalidItem)
	}
	if prompt == "" {
		return MediaResult{}, fmt.Errorf("%w: prompt is required", ErrInvalidItem)
	}
	if s.media == nil {
		return MediaResult{}, ErrMediaUnavailable
	}

	apiKey, err := s.credentials.Get(ProviderName)
	if err != nil {
		return MediaResult{}, err
	}

	var url string
	if req.Type == domain.MediaAudio {
		url, err = s.media.SynthesizeAudio(ctx, apiKey, prompt, req.Voice)
	} else {
		url, err = s.media.SynthesizeVideo(ctx, apiKey, prompt)
	}
	if err != nil {
		return MediaResult{}, fmt.Errorf("%s synthesis failed: %w", req.Type, err)
	}
	s.log.Info().Str("type", string(req.Type)).Int("bytes", len(url)).Msg("Media synthesized")

	result := MediaResult{Type: req.Type, Prompt: prompt, URL: url}
	if !req.AddToDataset {
		return result, nil
	}

	lesson := domain.Lesson{
		Instruction: fmt.Sprintf("Generate a %s based on: %s", req.Type, prompt),
		Response:    fmt.Sprintf("[Generated %s stream]", req.Type),
	}
	if req.Type == domain.MediaAudio {
		lesson.Audio = url
	} else {
		lesson.Video = url
	}
	added, err := s.AddLessons([]domain.Lesson{lesson})
	if err != nil {
		return MediaResult{}, err
	}
	result.Lesson = &added[0]
	return result, nil
}

func (s *Service) emit(action string, lessons, prefs int) {
	if s.eventManager == nil {
		return
	}
	s.eventManager.EmitTyped("curriculum", &events.CurriculumChangedData{
		Action:      action,
		Lessons:     lessons,
		Preferences: prefs,
	})
}

func prepareLessons(in []domain.Lesson) ([]domain.Lesson, error) {
	out := make([]domain.Lesson, len(in))
	seen := make(map[string]bool, len(in))
	for i, l := range in {
		if strings.TrimSpace(l.Instruction) == "" || strings.TrimSpace(l.Response) == "" {
			return nil, fmt.Errorf("%w: lesson %d needs an instruction and a response", ErrInvalidItem, i)
		}
		if strings.TrimSpace(l.ID) == "" || seen[l.ID] {
			l.ID = uuid.NewString()
		}
		seen[l.ID] = true
		out[i] = l
	}
	return out, nil
}

func preparePreferences(in []domain.PreferencePair) ([]domain.PreferencePair, error) {
	out := make([]domain.PreferencePair, len(in))
	seen := make(map[string]bool, len(in))
	for i, p := range in {
		if strings.TrimSpace(p.Prompt) == "" || strings.TrimSpace(p.Chosen) == "" || strings.TrimSpace(p.Rejected) == "" {
			return nil, fmt.Errorf("%w: preference pair %d needs a prompt, chosen and rejected", ErrInvalidItem, i)
		}
		if strings.TrimSpace(p.ID) == "" || seen[p.ID] {
			p.ID = uuid.NewString()
		}
		seen[p.ID] = true
		out[i] = p
	}
	return out, nil
}

func clampCount(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > MaxGenerateCount {
		return MaxGenerateCount
	}
	return n
}
