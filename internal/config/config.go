// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aristath/llamaforge/internal/domain"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for studio.db (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	GeminiAPIKey  string // Seed credential, kept in memory only
	GeminiBaseURL string
	GeminiModel   string
	SpeechModel   string // Text-to-speech model for media synthesis
	VideoModel    string // Long-running video generation model
	OllamaURL     string

	TickInterval          time.Duration
	SettleDelay           time.Duration
	AutoCaptureOnComplete bool
	VersionsPersist       bool
	RuntimeProbeSchedule  string

	DefaultsFile    string
	TrainingDefault domain.Configuration

	Archive ArchiveConfig
}

// ArchiveConfig holds the S3-compatible bucket used for version archives
type ArchiveConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	RetentionDays   int // Archives older than this are rotated out; 0 keeps everything
}

// Enabled reports whether enough is configured to upload archives
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != "" && a.AccessKeyID != "" && a.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("LLAMAFORGE_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  dataDir,
		Port:     getEnvAsInt("GO_PORT", 8010),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", ""),
		SpeechModel:   getEnv("GEMINI_SPEECH_MODEL", ""),
		VideoModel:    getEnv("GEMINI_VIDEO_MODEL", ""),
		OllamaURL:     getEnv("OLLAMA_URL", "http://127.0.0.1:11434"),

		TickInterval:          time.Duration(getEnvAsInt("TICK_INTERVAL_MS", 500)) * time.Millisecond,
		SettleDelay:           time.Duration(getEnvAsInt("SETTLE_DELAY_MS", 1000)) * time.Millisecond,
		AutoCaptureOnComplete: getEnvAsBool("AUTO_CAPTURE_ON_COMPLETE", false),
		VersionsPersist:       getEnvAsBool("VERSIONS_PERSIST", false),
		RuntimeProbeSchedule:  getEnv("RUNTIME_PROBE_SCHEDULE", "@every 30s"),

		DefaultsFile:    getEnv("STUDIO_DEFAULTS_FILE", ""),
		TrainingDefault: domain.DefaultConfiguration(),

		Archive: ArchiveConfig{
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("ARCHIVE_REGION", "auto"),
			RetentionDays:   getEnvAsInt("ARCHIVE_RETENTION_DAYS", 30),
		},
	}

	if cfg.DefaultsFile != "" {
		defaults, err := LoadTrainingDefaults(cfg.DefaultsFile)
		if err != nil {
			return nil, err
		}
		cfg.TrainingDefault = defaults
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadTrainingDefaults reads a TOML file whose keys override the built-in
// training configuration. Keys absent from the file keep their defaults.
func LoadTrainingDefaults(path string) (domain.Configuration, error) {
	cfg := domain.DefaultConfiguration()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return domain.Configuration{}, fmt.Errorf("failed to read training defaults %s: %w", path, err)
	}
	if cfg.Tools == nil {
		cfg.Tools = []domain.ToolDefinition{}
	}
	if err := cfg.Validate(); err != nil {
		return domain.Configuration{}, fmt.Errorf("training defaults %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the loaded values are usable
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("GO_PORT %d out of range", c.Port))
	}
	if c.TickInterval <= 0 {
		problems = append(problems, "TICK_INTERVAL_MS must be positive")
	}
	if c.SettleDelay < 0 {
		problems = append(problems, "SETTLE_DELAY_MS must not be negative")
	}
	if c.RuntimeProbeSchedule != "" {
		if _, err := cron.ParseStandard(c.RuntimeProbeSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("RUNTIME_PROBE_SCHEDULE: %v", err))
		}
	}
	if c.Archive.Bucket != "" && !c.Archive.Enabled() {
		problems = append(problems, "ARCHIVE_BUCKET set without archive credentials")
	}
	if c.Archive.RetentionDays < 0 {
		problems = append(problems, "ARCHIVE_RETENTION_DAYS must not be negative")
	}
	if err := c.TrainingDefault.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// DatabasePath returns the location of studio.db
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "studio.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
