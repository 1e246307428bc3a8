package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/google/uuid"
)

// ForgeLessonCount is the number of lessons requested with a forge plan
const ForgeLessonCount = 10

// FallbackModelfile is returned when the provider produces no Modelfile text
func FallbackModelfile(baseModel string) string {
	return "# Modelfile\nFROM " + baseModel
}

type rawLesson struct {
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
	Thought     string `json:"thought"`
}

// GenerateLessons asks the provider for count instruction/response pairs on topic.
// When includeThought is set every lesson carries a reasoning trace.
func (c *Client) GenerateLessons(ctx context.Context, apiKey, topic string, count int, includeThought bool) ([]domain.Lesson, error) {
	if count <= 0 {
		return []domain.Lesson{}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate %d high-quality instruction-response pairs for fine-tuning an LLM on: %s.\n", count, topic)
	if includeThought {
		sb.WriteString("For each pair, include a \"thought\" field with the step-by-step reasoning needed to reach the answer.\n")
	}
	sb.WriteString("Each pair should be accurate, concise and professional.")

	var raw []rawLesson
	if err := c.generateJSON(ctx, apiKey, sb.String(), arraySchema(lessonSchema(includeThought)), &raw); err != nil {
		return nil, err
	}
	return toLessons(raw), nil
}

// GenerateToolLessons asks for count lessons that exercise tool
func (c *Client) GenerateToolLessons(ctx context.Context, apiKey string, tool domain.ToolDefinition, count int) ([]domain.Lesson, error) {
	if count <= 0 {
		return []domain.Lesson{}, nil
	}

	prompt := fmt.Sprintf("Generate %d training lessons that teach a model to call the tool %q.\n"+
		"Tool description: %s\nParameter schema: %s\n"+
		"Each response should show the exact tool invocation followed by how its result is used.",
		count, tool.Name, tool.Description, tool.Parameters)

	var raw []rawLesson
	if err := c.generateJSON(ctx, apiKey, prompt, arraySchema(lessonSchema(false)), &raw); err != nil {
		return nil, err
	}
	return toLessons(raw), nil
}

// VerifyDataset asks the provider to review lessons. The result order follows the
// provider's answer; lessons it skipped are absent.
func (c *Client) VerifyDataset(ctx context.Context, apiKey string, lessons []domain.Lesson) ([]domain.VerificationResult, error) {
	if len(lessons) == 0 {
		return []domain.VerificationResult{}, nil
	}

	type reviewItem struct {
		ID          string `json:"id"`
		Instruction string `json:"instruction"`
		Response    string `json:"response"`
	}
	items := make([]reviewItem, len(lessons))
	for i, l := range lessons {
		items[i] = reviewItem{ID: l.ID, Instruction: l.Instruction, Response: l.Response}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal dataset", Cause: err}
	}

	prompt := "Review this training dataset for quality. For each entry, mark it as 'pass' or 'fail' " +
		"and suggest a fix for failures.\nDataset: " + string(payload)

	resultSchema := arraySchema(objectSchema(map[string]schema{
		"id":         stringProp(""),
		"status":     stringProp("Must be 'pass' or 'fail'"),
		"suggestion": stringProp(""),
	}, "id", "status"))

	var results []domain.VerificationResult
	if err := c.generateJSON(ctx, apiKey, prompt, resultSchema, &results); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(lessons))
	for _, l := range lessons {
		known[l.ID] = true
	}
	out := make([]domain.VerificationResult, 0, len(results))
	for _, r := range results {
		if !known[r.ID] {
			continue
		}
		r.Status = strings.ToLower(strings.TrimSpace(r.Status))
		if r.Status != "pass" {
			r.Status = "fail"
		}
		out = append(out, r)
	}
	return out, nil
}

// RankPreference asks the provider which of two completions better answers prompt
func (c *Client) RankPreference(ctx context.Context, apiKey, prompt, optionA, optionB string) (domain.PreferenceRanking, error) {
	text := fmt.Sprintf("As a senior reviewer, evaluate these two AI outputs for the prompt: %q.\n\n"+
		"Criteria: functional correctness, maintainability, conciseness.\n\n"+
		"OPTION A:\n\"\"\"\n%s\n\"\"\"\n\nOPTION B:\n\"\"\"\n%s\n\"\"\"\n\n"+
		"Select the winner and provide a technical critique.", prompt, optionA, optionB)

	rankSchema := objectSchema(map[string]schema{
		"winner":   stringProp("Must be 'A' or 'B'"),
		"critique": stringProp("Technical justification for the choice"),
	}, "winner", "critique")

	var ranking domain.PreferenceRanking
	if err := c.generateJSON(ctx, apiKey, text, rankSchema, &ranking); err != nil {
		return domain.PreferenceRanking{}, err
	}

	ranking.Winner = strings.ToUpper(strings.TrimSpace(ranking.Winner))
	if ranking.Winner != "A" && ranking.Winner != "B" {
		return domain.PreferenceRanking{}, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: fmt.Sprintf("winner %q is neither A nor B", ranking.Winner),
		}
	}
	return ranking, nil
}

// planConfig mirrors the configuration part of a forge plan. Pointers tell absent
// fields apart from zero values.
type planConfig struct {
	BaseModel     *string  `json:"baseModel"`
	Epochs        *float64 `json:"epochs"`
	LearningRate  *float64 `json:"learningRate"`
	BatchSize     *float64 `json:"batchSize"`
	ContextLength *float64 `json:"contextLength"`
	VisionEnabled *bool    `json:"visionEnabled"`
	VisionEncoder *string  `json:"visionEncoder"`
	AudioEnabled  *bool    `json:"audioEnabled"`
	VideoEnabled  *bool    `json:"videoEnabled"`
}

type rawPlan struct {
	Config          planConfig  `json:"config"`
	MissionBriefing string      `json:"missionBriefing"`
	Protocol        []string    `json:"protocol"`
	Lessons         []rawLesson `json:"lessons"`
}

// ForgePlan turns a free-text mission into a full run design. The base model is
// chosen from availableModels, or from the suggested list when none are given.
// Returned configurations always pass Validate.
func (c *Client) ForgePlan(ctx context.Context, apiKey, mission string, availableModels []string) (domain.ForgePlan, error) {
	models := availableModels
	if len(models) == 0 {
		models = domain.SuggestedBaseModels
	}

	prompt := fmt.Sprintf("Act as an AI training orchestrator. Mission: %q.\n\n"+
		"If the mission involves voice work, enable audio and write lessons as script lines with vocal direction.\n"+
		"If it involves video, enable vision and video and write lessons as shot lists with edit recommendations.\n"+
		"For multimodal missions add temporal or acoustic analysis steps to the protocol.\n\n"+
		"1. Select the base model from: %s.\n"+
		"2. Choose epochs, learningRate, batchSize (%s), contextLength (%s) and vision settings (encoders: %s).\n"+
		"3. Generate %d lessons.\nReturn JSON.",
		mission,
		strings.Join(models, ", "),
		joinInts(domain.BatchSizes),
		joinInts(domain.ContextLengths),
		strings.Join(domain.VisionEncoders, ", "),
		ForgeLessonCount)

	planSchema := objectSchema(map[string]schema{
		"config": objectSchema(map[string]schema{
			"baseModel":     stringProp(""),
			"epochs":        {"type": "NUMBER"},
			"learningRate":  {"type": "NUMBER"},
			"batchSize":     {"type": "NUMBER"},
			"contextLength": {"type": "NUMBER"},
			"visionEnabled": {"type": "BOOLEAN"},
			"visionEncoder": stringProp(""),
			"audioEnabled":  {"type": "BOOLEAN"},
			"videoEnabled":  {"type": "BOOLEAN"},
		}),
		"missionBriefing": stringProp(""),
		"protocol":        arraySchema(stringProp("")),
		"lessons":         arraySchema(lessonSchema(false)),
	}, "config", "missionBriefing", "protocol", "lessons")

	var raw rawPlan
	if err := c.generateJSON(ctx, apiKey, prompt, planSchema, &raw); err != nil {
		return domain.ForgePlan{}, err
	}

	protocol := raw.Protocol
	if protocol == nil {
		protocol = []string{}
	}
	return domain.ForgePlan{
		Config:          raw.Config.apply(domain.DefaultConfiguration(), models),
		Lessons:         toLessons(raw.Lessons),
		MissionBriefing: raw.MissionBriefing,
		Protocol:        protocol,
	}, nil
}

// GenerateModelfile asks the provider for an Ollama Modelfile for cfg. Empty
// answers fall back to a minimal FROM line.
func (c *Client) GenerateModelfile(ctx context.Context, apiKey string, cfg domain.Configuration) (string, error) {
	prompt := fmt.Sprintf("Create an Ollama Modelfile for a model based on %q.\n"+
		"Config: Epochs=%d, LR=%g, Batch=%d, Context=%d, Method=%s.\n"+
		"Return only the Modelfile contents.",
		cfg.BaseModel, cfg.Epochs, cfg.LearningRate, cfg.BatchSize, cfg.ContextLength, cfg.TrainingMethod)

	text, err := c.generate(ctx, apiKey, prompt, nil)
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && ce.Type == ErrTypeInvalidResponse {
			return FallbackModelfile(cfg.BaseModel), nil
		}
		return "", err
	}

	text = stripFence(text)
	if text == "" {
		return FallbackModelfile(cfg.BaseModel), nil
	}
	return text, nil
}

// apply overlays the provider's choices onto base, snapping numeric fields to the
// nearest allowed value and dropping choices that would not validate.
func (p planConfig) apply(base domain.Configuration, models []string) domain.Configuration {
	cfg := base.Clone()

	if p.BaseModel != nil && strings.TrimSpace(*p.BaseModel) != "" {
		cfg.BaseModel = strings.TrimSpace(*p.BaseModel)
	} else if len(models) > 0 {
		cfg.BaseModel = models[0]
	}
	if p.Epochs != nil && *p.Epochs >= 1 {
		cfg.Epochs = int(math.Round(*p.Epochs))
	}
	if p.LearningRate != nil && *p.LearningRate > 0 {
		cfg.LearningRate = *p.LearningRate
	}
	if p.BatchSize != nil {
		cfg.BatchSize = nearest(domain.BatchSizes, *p.BatchSize)
	}
	if p.ContextLength != nil {
		cfg.ContextLength = nearest(domain.ContextLengths, *p.ContextLength)
	}
	if p.VisionEnabled != nil {
		cfg.VisionEnabled = *p.VisionEnabled
	}
	if p.VisionEncoder != nil {
		for _, enc := range domain.VisionEncoders {
			if enc == *p.VisionEncoder {
				cfg.VisionEncoder = enc
			}
		}
	}
	if p.AudioEnabled != nil {
		cfg.AudioEnabled = *p.AudioEnabled
	}
	if p.VideoEnabled != nil {
		cfg.VideoEnabled = *p.VideoEnabled
	}
	return cfg
}

func nearest(allowed []int, v float64) int {
	best := allowed[0]
	for _, candidate := range allowed[1:] {
		if math.Abs(float64(candidate)-v) < math.Abs(float64(best)-v) {
			best = candidate
		}
	}
	return best
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

func toLessons(raw []rawLesson) []domain.Lesson {
	out := make([]domain.Lesson, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Instruction) == "" || strings.TrimSpace(r.Response) == "" {
			continue
		}
		out = append(out, domain.Lesson{
			ID:          uuid.NewString(),
			Instruction: r.Instruction,
			Response:    r.Response,
			Thought:     r.Thought,
		})
	}
	return out
}
