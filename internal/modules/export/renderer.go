// Package export renders deployment artifacts for the current configuration:
// an Ollama Modelfile, a standalone python inference snippet and a JSON manifest.
package export

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/rs/zerolog"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Where a Modelfile came from
const (
	SourceProvider = "provider"
	SourceTemplate = "template"
)

const (
	visionHeader = "# --- HYBRID VISION ACTIVATED ---\n" +
		"# This model requires a vision projector (mmproj) for full multimodal capabilities.\n\n"
	visionAppendix = "\n\n# Vision bridging settings\n" +
		"ADAPTER ./vision-projector.mmproj\n\n" +
		"PARAMETER temperature 0.1\n" +
		"PARAMETER top_p 0.9\n" +
		"SYSTEM \"\"\"You are a multimodal expert. Use visual input to provide precise solutions.\"\"\"\n"
)

// Modelfile is a rendered Modelfile and the renderer that produced it
type Modelfile struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Renderer produces a Modelfile for a configuration
type Renderer interface {
	RenderModelfile(ctx context.Context, cfg domain.Configuration) (Modelfile, error)
}

// TemplateRenderer renders Modelfiles locally from an embedded template
type TemplateRenderer struct{}

// RenderModelfile implements Renderer
func (TemplateRenderer) RenderModelfile(_ context.Context, cfg domain.Configuration) (Modelfile, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "Modelfile.tmpl", cfg); err != nil {
		return Modelfile{}, fmt.Errorf("failed to render Modelfile: %w", err)
	}
	return Modelfile{Content: decorate(cfg, buf.String()), Source: SourceTemplate}, nil
}

// ModelfileGenerator is the provider operation behind ProviderRenderer
type ModelfileGenerator interface {
	GenerateModelfile(ctx context.Context, apiKey string, cfg domain.Configuration) (string, error)
}

// CredentialSource supplies provider API keys
type CredentialSource interface {
	Get(provider string) (string, error)
}

// ProviderRenderer asks the generative provider for a Modelfile and falls back to
// the local template when no credential is set or the call fails.
type ProviderRenderer struct {
	provider    string
	generator   ModelfileGenerator
	credentials CredentialSource
	fallback    Renderer
	log         zerolog.Logger
}

// NewProviderRenderer creates a provider-backed renderer for the named credential slot
func NewProviderRenderer(provider string, generator ModelfileGenerator, credentials CredentialSource, log zerolog.Logger) *ProviderRenderer {
	return &ProviderRenderer{
		provider:    provider,
		generator:   generator,
		credentials: credentials,
		fallback:    TemplateRenderer{},
		log:         log.With().Str("component", "modelfile_renderer").Logger(),
	}
}

// RenderModelfile implements Renderer
func (r *ProviderRenderer) RenderModelfile(ctx context.Context, cfg domain.Configuration) (Modelfile, error) {
	apiKey, err := r.credentials.Get(r.provider)
	if err != nil {
		return r.fallback.RenderModelfile(ctx, cfg)
	}

	text, err := r.generator.GenerateModelfile(ctx, apiKey, cfg)
	if err != nil || strings.TrimSpace(text) == "" {
		r.log.Warn().Err(err).Msg("Provider Modelfile unavailable, rendering template")
		return r.fallback.RenderModelfile(ctx, cfg)
	}
	return Modelfile{Content: decorate(cfg, strings.TrimSpace(text)), Source: SourceProvider}, nil
}

// RenderSnippet renders the standalone python inference script for cfg
func RenderSnippet(cfg domain.Configuration) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "snippet.py.tmpl", cfg); err != nil {
		return "", fmt.Errorf("failed to render snippet: %w", err)
	}
	return buf.String(), nil
}

// decorate wraps vision-enabled Modelfiles with the projector header and adapter settings
func decorate(cfg domain.Configuration, body string) string {
	body = strings.TrimRight(body, "\n")
	if !cfg.VisionEnabled {
		return body + "\n"
	}
	return visionHeader + body + visionAppendix
}
