package export

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	text   string
	err    error
	called bool
	key    string
}

func (s *stubGenerator) GenerateModelfile(_ context.Context, apiKey string, _ domain.Configuration) (string, error) {
	s.called = true
	s.key = apiKey
	return s.text, s.err
}

func TestTemplateRenderer_TextOnly(t *testing.T) {
	cfg := domain.DefaultConfiguration()
	cfg.Tools = []domain.ToolDefinition{{ID: "t1", Name: "search", Description: "web search"}}

	mf, err := TemplateRenderer{}.RenderModelfile(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, SourceTemplate, mf.Source)
	assert.True(t, strings.HasPrefix(mf.Content, "# Modelfile for llama3:8b\n"))
	assert.Contains(t, mf.Content, "\nFROM llama3:8b\n")
	assert.Contains(t, mf.Content, "PARAMETER num_ctx 2048")
	assert.Contains(t, mf.Content, "Tuned with SFT for 3 epochs")
	assert.Contains(t, mf.Content, `SYSTEM """Think through each problem`)
	assert.Contains(t, mf.Content, "# Tool: search (web search)")
	assert.NotContains(t, mf.Content, "HYBRID VISION")
	assert.True(t, strings.HasSuffix(mf.Content, "\n"))
	assert.False(t, strings.HasSuffix(mf.Content, "\n\n"))
}

func TestTemplateRenderer_NoReasoning(t *testing.T) {
	cfg := domain.DefaultConfiguration()
	cfg.ReasoningMode = false

	mf, err := TemplateRenderer{}.RenderModelfile(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotContains(t, mf.Content, "SYSTEM")
}

func TestTemplateRenderer_Vision(t *testing.T) {
	cfg := domain.DefaultConfiguration()
	cfg.VisionEnabled = true

	mf, err := TemplateRenderer{}.RenderModelfile(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(mf.Content, "# --- HYBRID VISION ACTIVATED ---\n"))
	assert.Contains(t, mf.Content, "ADAPTER ./vision-projector.mmproj")
	assert.True(t, strings.Index(mf.Content, "FROM llama3:8b") < strings.Index(mf.Content, "ADAPTER"))
}

func TestProviderRenderer_UsesProvider(t *testing.T) {
	creds := settings.NewCredentials()
	creds.Set("gemini", "secret")
	gen := &stubGenerator{text: "FROM llama3:8b\nPARAMETER temperature 0.2\n\n"}

	r := NewProviderRenderer("gemini", gen, creds, zerolog.Nop())
	mf, err := r.RenderModelfile(context.Background(), domain.DefaultConfiguration())
	require.NoError(t, err)

	assert.Equal(t, Modelfile{Content: "FROM llama3:8b\nPARAMETER temperature 0.2\n", Source: SourceProvider}, mf)
	assert.Equal(t, "secret", gen.key)
}

func TestProviderRenderer_VisionDecoratesProviderOutput(t *testing.T) {
	creds := settings.NewCredentials()
	creds.Set("gemini", "secret")
	cfg := domain.DefaultConfiguration()
	cfg.VisionEnabled = true

	r := NewProviderRenderer("gemini", &stubGenerator{text: "FROM x"}, creds, zerolog.Nop())
	mf, err := r.RenderModelfile(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, visionHeader+"FROM x"+visionAppendix, mf.Content)
}

func TestProviderRenderer_FallsBack(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		gen       *stubGenerator
		wantCalls bool
	}{
		{"no credential", "", &stubGenerator{text: "FROM x"}, false},
		{"provider error", "secret", &stubGenerator{err: errors.New("down")}, true},
		{"empty answer", "secret", &stubGenerator{text: "  \n"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := settings.NewCredentials()
			creds.Set("gemini", tt.key)

			r := NewProviderRenderer("gemini", tt.gen, creds, zerolog.New(nil).Level(zerolog.Disabled))
			mf, err := r.RenderModelfile(context.Background(), domain.DefaultConfiguration())
			require.NoError(t, err)
			assert.Equal(t, SourceTemplate, mf.Source)
			assert.Contains(t, mf.Content, "FROM llama3:8b")
			assert.Equal(t, tt.wantCalls, tt.gen.called)
		})
	}
}

func TestRenderSnippet(t *testing.T) {
	cfg := domain.DefaultConfiguration()
	cfg.ContextLength = 4096

	text, err := RenderSnippet(cfg)
	require.NoError(t, err)
	assert.Contains(t, text, "n_ctx=4096,")
	assert.Contains(t, text, "# n_ctx: 4096 | multimodal: FALSE")
	assert.Contains(t, text, "chat_handler = None")
	assert.NotContains(t, text, "Llava15ChatHandler")

	cfg.VisionEnabled = true
	text, err = RenderSnippet(cfg)
	require.NoError(t, err)
	assert.Contains(t, text, "from llama_cpp.llama_chat_format import Llava15ChatHandler")
	assert.Contains(t, text, `Llava15ChatHandler(clip_model_path="./vision-projector.mmproj")`)
	assert.Contains(t, text, "multimodal: TRUE")
}
