package testing

import (
	"context"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock of the provider operations used by the curriculum
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateLessons(ctx context.Context, apiKey, topic string, count int, includeThought bool) ([]domain.Lesson, error) {
	args := m.Called(ctx, apiKey, topic, count, includeThought)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Lesson), args.Error(1)
}

func (m *MockGenerator) GenerateToolLessons(ctx context.Context, apiKey string, tool domain.ToolDefinition, count int) ([]domain.Lesson, error) {
	args := m.Called(ctx, apiKey, tool, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Lesson), args.Error(1)
}

func (m *MockGenerator) VerifyDataset(ctx context.Context, apiKey string, lessons []domain.Lesson) ([]domain.VerificationResult, error) {
	args := m.Called(ctx, apiKey, lessons)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VerificationResult), args.Error(1)
}

func (m *MockGenerator) ForgePlan(ctx context.Context, apiKey, mission string, availableModels []string) (domain.ForgePlan, error) {
	args := m.Called(ctx, apiKey, mission, availableModels)
	return args.Get(0).(domain.ForgePlan), args.Error(1)
}

func (m *MockGenerator) RankPreference(ctx context.Context, apiKey, prompt, optionA, optionB string) (domain.PreferenceRanking, error) {
	args := m.Called(ctx, apiKey, prompt, optionA, optionB)
	return args.Get(0).(domain.PreferenceRanking), args.Error(1)
}

// MockModelfileGenerator is a mock of the provider call that writes a Modelfile
type MockModelfileGenerator struct {
	mock.Mock
}

func (m *MockModelfileGenerator) GenerateModelfile(ctx context.Context, apiKey string, cfg domain.Configuration) (string, error) {
	args := m.Called(ctx, apiKey, cfg)
	return args.String(0), args.Error(1)
}

// MockCredentialSource is a mock provider key store
type MockCredentialSource struct {
	mock.Mock
}

func (m *MockCredentialSource) Get(provider string) (string, error) {
	args := m.Called(provider)
	return args.String(0), args.Error(1)
}

// MockModelLister is a mock of the local runtime's installed model listing
type MockModelLister struct {
	mock.Mock
}

func (m *MockModelLister) ModelNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockMediaSynthesizer is a mock of the provider's audio and video synthesis
type MockMediaSynthesizer struct {
	mock.Mock
}

func (m *MockMediaSynthesizer) SynthesizeAudio(ctx context.Context, apiKey, text, voice string) (string, error) {
	args := m.Called(ctx, apiKey, text, voice)
	return args.String(0), args.Error(1)
}

func (m *MockMediaSynthesizer) SynthesizeVideo(ctx context.Context, apiKey, prompt string) (string, error) {
	args := m.Called(ctx, apiKey, prompt)
	return args.String(0), args.Error(1)
}

// MockChatter is a mock of the provider chat used by the test bench
type MockChatter struct {
	mock.Mock
}

func (m *MockChatter) Chat(ctx context.Context, apiKey, systemInstruction, message, image string) (domain.ChatReply, error) {
	args := m.Called(ctx, apiKey, systemInstruction, message, image)
	return args.Get(0).(domain.ChatReply), args.Error(1)
}
