package export

import (
	"context"
	"time"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/rs/zerolog"
)

// ConfigSource supplies the current training configuration
type ConfigSource interface {
	GetConfig() (domain.Configuration, error)
}

// VersionSource supplies the most recently captured version
type VersionSource interface {
	Latest() (domain.ModelVersion, bool)
}

// Manifest describes everything needed to deploy the current model
type Manifest struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	Config      domain.Configuration   `json:"config"`
	Modelfile   Modelfile              `json:"modelfile"`
	Snippet     string                 `json:"snippet"`
	Version     *domain.VersionSummary `json:"version,omitempty"`
}

// Service renders export artifacts for the current configuration
type Service struct {
	renderer Renderer
	config   ConfigSource
	versions VersionSource
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates an export service
func NewService(renderer Renderer, config ConfigSource, versions VersionSource, log zerolog.Logger) *Service {
	return &Service{
		renderer: renderer,
		config:   config,
		versions: versions,
		now:      time.Now,
		log:      log.With().Str("service", "export").Logger(),
	}
}

// Modelfile renders a Modelfile for the current configuration
func (s *Service) Modelfile(ctx context.Context) (Modelfile, error) {
	cfg, err := s.config.GetConfig()
	if err != nil {
		return Modelfile{}, err
	}
	return s.renderer.RenderModelfile(ctx, cfg)
}

// Snippet renders the python inference script for the current configuration
func (s *Service) Snippet() (string, error) {
	cfg, err := s.config.GetConfig()
	if err != nil {
		return "", err
	}
	return RenderSnippet(cfg)
}

// Manifest bundles configuration, Modelfile, snippet and the latest captured version
func (s *Service) Manifest(ctx context.Context) (Manifest, error) {
	cfg, err := s.config.GetConfig()
	if err != nil {
		return Manifest{}, err
	}
	modelfile, err := s.renderer.RenderModelfile(ctx, cfg)
	if err != nil {
		return Manifest{}, err
	}
	snippet, err := RenderSnippet(cfg)
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		GeneratedAt: s.now().UTC(),
		Config:      cfg,
		Modelfile:   modelfile,
		Snippet:     snippet,
	}
	if latest, ok := s.versions.Latest(); ok {
		summary := latest.Summary()
		m.Version = &summary
	}

	s.log.Debug().Str("source", modelfile.Source).Bool("has_version", m.Version != nil).Msg("Manifest rendered")
	return m, nil
}
