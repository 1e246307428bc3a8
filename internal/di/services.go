package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/llamaforge/internal/clients/gemini"
	"github.com/aristath/llamaforge/internal/clients/ollama"
	"github.com/aristath/llamaforge/internal/config"
	"github.com/aristath/llamaforge/internal/events"
	"github.com/aristath/llamaforge/internal/modules/curriculum"
	"github.com/aristath/llamaforge/internal/modules/export"
	"github.com/aristath/llamaforge/internal/modules/settings"
	"github.com/aristath/llamaforge/internal/modules/testbench"
	"github.com/aristath/llamaforge/internal/modules/training"
	"github.com/aristath/llamaforge/internal/modules/versions"
	"github.com/aristath/llamaforge/internal/orchestrator"
	"github.com/aristath/llamaforge/internal/reliability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients and services and wires them together
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Events
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// Clients
	geminiConfig := gemini.DefaultConfig()
	geminiConfig.BaseURL = cfg.GeminiBaseURL
	geminiConfig.Model = cfg.GeminiModel
	if cfg.SpeechModel != "" {
		geminiConfig.SpeechModel = cfg.SpeechModel
	}
	if cfg.VideoModel != "" {
		geminiConfig.VideoModel = cfg.VideoModel
	}
	container.GeminiClient = gemini.NewClient(geminiConfig, log)

	ollamaConfig := ollama.DefaultConfig()
	ollamaConfig.BaseURL = cfg.OllamaURL
	container.OllamaClient = ollama.NewClient(ollamaConfig, log)

	// Credentials live in memory only; the env key is a seed
	container.Credentials = settings.NewCredentials()
	if cfg.GeminiAPIKey != "" {
		container.Credentials.Set(curriculum.ProviderName, cfg.GeminiAPIKey)
	}

	// Settings and curriculum
	container.SettingsService = settings.NewService(
		container.SettingsRepo,
		cfg.TrainingDefault,
		cfg.AutoCaptureOnComplete,
		container.EventManager,
		log,
	)
	container.CurriculumService = curriculum.NewService(
		container.CurriculumRepo,
		container.GeminiClient,
		container.Credentials,
		container.SettingsService,
		container.OllamaClient,
		container.EventManager,
		log,
	)
	container.CurriculumService.SetMediaSynthesizer(container.GeminiClient)

	// Version store, optionally backed by studio.db
	var storeOpts []versions.Option
	if cfg.VersionsPersist {
		storeOpts = append(storeOpts, versions.WithPersister(container.VersionRepo))
	}
	container.VersionStore = versions.NewStore(log, storeOpts...)
	if cfg.VersionsPersist {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := container.VersionStore.Load(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to load persisted versions: %w", err)
		}
	}

	// Run controller with Prometheus export
	container.MetricsRegistry = prometheus.NewRegistry()
	container.MetricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsObserver, err := training.NewMetricsObserver(container.MetricsRegistry)
	if err != nil {
		return fmt.Errorf("failed to register run metrics: %w", err)
	}

	container.Controller = training.NewController(training.Options{
		TickInterval: cfg.TickInterval,
		SettleDelay:  cfg.SettleDelay,
	}, log)
	container.Controller.AddObserver(metricsObserver)

	// Archive to object storage when a bucket is configured
	var archiver orchestrator.Archiver
	if cfg.Archive.Enabled() {
		r2Client, err := reliability.NewR2Client(context.Background(), reliability.R2Config{
			Endpoint:        cfg.Archive.Endpoint,
			Bucket:          cfg.Archive.Bucket,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			Region:          cfg.Archive.Region,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create archive client: %w", err)
		}
		container.R2Client = r2Client
		container.ArchiveService = reliability.NewVersionArchiveService(r2Client, log)
		archiver = container.ArchiveService
	}

	container.Orchestrator = orchestrator.New(
		container.Controller,
		container.VersionStore,
		container.SettingsService,
		container.CurriculumService,
		container.SettingsService,
		archiver,
		container.EventManager,
		log,
	)

	// Test bench chats with the provider standing in for the trained model
	container.TestBenchService = testbench.NewService(
		container.Orchestrator,
		container.SettingsService,
		container.CurriculumService,
		container.GeminiClient,
		container.Credentials,
		log,
	)

	// Export renders through the provider and falls back to the local template
	renderer := export.NewProviderRenderer(
		curriculum.ProviderName,
		container.GeminiClient,
		container.Credentials,
		log,
	)
	container.ExportService = export.NewService(
		renderer,
		container.SettingsService,
		container.VersionStore,
		log,
	)

	log.Info().
		Bool("versions_persist", cfg.VersionsPersist).
		Bool("archive", archiver != nil).
		Msg("Services initialized")

	return nil
}
