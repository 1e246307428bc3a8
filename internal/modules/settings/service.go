package settings

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service owns the current training configuration and the generic studio settings
type Service struct {
	mu           sync.Mutex
	repo         *Repository
	defaults     domain.Configuration
	autoCapture  bool
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a settings service. defaults is the configuration used until
// one has been saved; autoCapture is the default of KeyAutoCapture.
func NewService(repo *Repository, defaults domain.Configuration, autoCapture bool, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		defaults:     defaults.Clone(),
		autoCapture:  autoCapture,
		eventManager: eventManager,
		log:          log.With().Str("service", "settings").Logger(),
	}
}

// GetConfig returns the current training configuration
func (s *Service) GetConfig() (domain.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadConfig()
}

// UpdateConfig validates and stores cfg as the current configuration
func (s *Service) UpdateConfig(cfg domain.Configuration) (domain.Configuration, error) {
	if cfg.Tools == nil {
		cfg.Tools = []domain.ToolDefinition{}
	}
	if err := cfg.Validate(); err != nil {
		return domain.Configuration{}, err
	}

	s.mu.Lock()
	err := s.saveConfig(cfg)
	s.mu.Unlock()
	if err != nil {
		return domain.Configuration{}, err
	}

	s.emit("updated", cfg)
	return cfg.Clone(), nil
}

// AddTool appends a tool definition to the current configuration.
// A blank id is replaced by a fresh one.
func (s *Service) AddTool(tool domain.ToolDefinition) (domain.ToolDefinition, error) {
	if strings.TrimSpace(tool.ID) == "" {
		tool.ID = uuid.NewString()
	}

	s.mu.Lock()
	cfg, err := s.loadConfig()
	if err != nil {
		s.mu.Unlock()
		return domain.ToolDefinition{}, err
	}
	cfg.Tools = append(cfg.Tools, tool)
	if err := cfg.Validate(); err != nil {
		s.mu.Unlock()
		return domain.ToolDefinition{}, err
	}
	err = s.saveConfig(cfg)
	s.mu.Unlock()
	if err != nil {
		return domain.ToolDefinition{}, err
	}

	s.emit("tool_added", tool)
	return tool, nil
}

// RemoveTool deletes the tool with id from the current configuration
func (s *Service) RemoveTool(id string) error {
	s.mu.Lock()
	cfg, err := s.loadConfig()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	kept := make([]domain.ToolDefinition, 0, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		if tool.ID != id {
			kept = append(kept, tool)
		}
	}
	if len(kept) == len(cfg.Tools) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
	cfg.Tools = kept
	err = s.saveConfig(cfg)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emit("tool_removed", map[string]string{"id": id})
	return nil
}

// FindTool returns the configured tool with id
func (s *Service) FindTool(id string) (domain.ToolDefinition, error) {
	cfg, err := s.GetConfig()
	if err != nil {
		return domain.ToolDefinition{}, err
	}
	for _, tool := range cfg.Tools {
		if tool.ID == id {
			return tool, nil
		}
	}
	return domain.ToolDefinition{}, fmt.Errorf("%w: %s", ErrToolNotFound, id)
}

// AutoCapture reports whether completed runs should be captured automatically
func (s *Service) AutoCapture() bool {
	v, err := s.repo.GetBool(KeyAutoCapture, s.autoCapture)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read auto-capture setting")
		return s.autoCapture
	}
	return v
}

// GetAll returns every generic setting with defaults filled in
func (s *Service) GetAll() (map[string]interface{}, error) {
	stored, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(SettingDefaults))
	for key, def := range SettingDefaults {
		out[key] = def
		if key == KeyAutoCapture {
			out[key] = s.autoCapture
		}
		raw, ok := stored[key]
		if !ok {
			continue
		}
		switch def.(type) {
		case bool:
			v, _ := s.repo.GetBool(key, false)
			out[key] = v
		default:
			out[key] = raw
		}
	}
	return out, nil
}

// Set updates a generic setting
func (s *Service) Set(key string, value interface{}) error {
	def, ok := SettingDefaults[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	switch def.(type) {
	case bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s expects a boolean", ErrInvalidValue, key)
		}
		if err := s.repo.SetBool(key, b); err != nil {
			return err
		}
	default:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s expects a string", ErrInvalidValue, key)
		}
		if err := s.repo.Set(key, str, nil); err != nil {
			return err
		}
	}

	s.emit("setting_updated", map[string]interface{}{"key": key, "value": value})
	return nil
}

// loadConfig reads the stored configuration. Caller holds mu.
func (s *Service) loadConfig() (domain.Configuration, error) {
	raw, err := s.repo.Get(KeyTrainingConfig)
	if err != nil {
		return domain.Configuration{}, err
	}
	if raw == nil {
		return s.defaults.Clone(), nil
	}

	var cfg domain.Configuration
	if err := json.Unmarshal([]byte(*raw), &cfg); err != nil {
		s.log.Warn().Err(err).Msg("Stored training configuration unreadable, using defaults")
		return s.defaults.Clone(), nil
	}
	return cfg.Clone(), nil
}

// saveConfig writes cfg. Caller holds mu.
func (s *Service) saveConfig(cfg domain.Configuration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode training configuration: %w", err)
	}
	description := "Current training configuration"
	if err := s.repo.Set(KeyTrainingConfig, string(data), &description); err != nil {
		return err
	}

	s.log.Info().
		Str("base_model", cfg.BaseModel).
		Int("epochs", cfg.Epochs).
		Int("tools", len(cfg.Tools)).
		Msg("Training configuration saved")
	return nil
}

func (s *Service) emit(action string, value interface{}) {
	if s.eventManager == nil {
		return
	}
	s.eventManager.EmitTyped("settings", &events.ConfigChangedData{Action: action, Value: value})
}
