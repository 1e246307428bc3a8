// Package testbench lets a finished or paused run be chatted with. Replies come
// from the generative provider playing the part of the fine-tuned model.
package testbench

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/llamaforge/internal/domain"
	"github.com/aristath/llamaforge/internal/modules/training"
	"github.com/rs/zerolog"
)

// ProviderName is the credential slot used for chat calls
const ProviderName = "gemini"

var (
	// ErrLocked is returned while no run is completed or paused
	ErrLocked = errors.New("test bench locked: complete or pause a run first")
	// ErrEmptyMessage is returned when neither text nor an image is sent
	ErrEmptyMessage = errors.New("message or image is required")
)

// RunSource reports the current run status
type RunSource interface {
	Info() training.Info
}

// ConfigSource supplies the current training configuration
type ConfigSource interface {
	GetConfig() (domain.Configuration, error)
}

// DatasetSource reports how many lessons the model was trained on
type DatasetSource interface {
	DatasetSize() (int, error)
}

// Chatter is the provider chat call
type Chatter interface {
	Chat(ctx context.Context, apiKey, systemInstruction, message, image string) (domain.ChatReply, error)
}

// CredentialSource supplies provider API keys
type CredentialSource interface {
	Get(provider string) (string, error)
}

// ChatRequest is one user turn. Image is an optional base64 data URI.
type ChatRequest struct {
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
}

// Status describes the model under test
type Status struct {
	Unlocked      bool             `json:"unlocked"`
	RunStatus     domain.RunStatus `json:"runStatus"`
	BaseModel     string           `json:"baseModel"`
	ContextLength int              `json:"contextLength"`
	VisionEnabled bool             `json:"visionEnabled"`
	DatasetSize   int              `json:"datasetSize"`
}

// Service answers test bench chats
type Service struct {
	run         RunSource
	config      ConfigSource
	dataset     DatasetSource
	chatter     Chatter
	credentials CredentialSource
	log         zerolog.Logger
}

// NewService creates a test bench service
func NewService(run RunSource, config ConfigSource, dataset DatasetSource, chatter Chatter, credentials CredentialSource, log zerolog.Logger) *Service {
	return &Service{
		run:         run,
		config:      config,
		dataset:     dataset,
		chatter:     chatter,
		credentials: credentials,
		log:         log.With().Str("service", "testbench").Logger(),
	}
}

// Unlocked reports whether status allows chatting
func Unlocked(status domain.RunStatus) bool {
	return status == domain.StatusCompleted || status == domain.StatusPaused
}

// Status returns the lock state and the model description
func (s *Service) Status() (Status, error) {
	cfg, err := s.config.GetConfig()
	if err != nil {
		return Status{}, err
	}
	size, err := s.dataset.DatasetSize()
	if err != nil {
		return Status{}, err
	}
	runStatus := s.run.Info().Status
	return Status{
		Unlocked:      Unlocked(runStatus),
		RunStatus:     runStatus,
		BaseModel:     cfg.BaseModel,
		ContextLength: cfg.ContextLength,
		VisionEnabled: cfg.VisionEnabled,
		DatasetSize:   size,
	}, nil
}

// Chat sends one message to the model under test
func (s *Service) Chat(ctx context.Context, req ChatRequest) (domain.ChatReply, error) {
	if status := s.run.Info().Status; !Unlocked(status) {
		return domain.ChatReply{}, fmt.Errorf("%w (status %s)", ErrLocked, status)
	}
	if strings.TrimSpace(req.Message) == "" && req.Image == "" {
		return domain.ChatReply{}, ErrEmptyMessage
	}

	cfg, err := s.config.GetConfig()
	if err != nil {
		return domain.ChatReply{}, err
	}
	size, err := s.dataset.DatasetSize()
	if err != nil {
		return domain.ChatReply{}, err
	}

	apiKey, err := s.credentials.Get(ProviderName)
	if err != nil {
		return domain.ChatReply{}, err
	}
	reply, err := s.chatter.Chat(ctx, apiKey, SystemInstruction(cfg, size), req.Message, req.Image)
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("test bench chat failed: %w", err)
	}

	s.log.Debug().Str("base_model", cfg.BaseModel).Bool("image", req.Image != "").Msg("Test bench reply")
	return reply, nil
}

// SystemInstruction casts the provider as the fine-tuned model described by cfg
func SystemInstruction(cfg domain.Configuration, datasetSize int) string {
	modality := "You are text-only."
	if cfg.VisionEnabled {
		modality = "You have multimodal vision capabilities enabled."
	}
	return fmt.Sprintf("You are the local fine-tuned model named 'ForgeAI'.\n"+
		"Your base architecture is %s.\n"+
		"You have been trained on a dataset of %d examples.\n"+
		"Context: %s\n\n"+
		"Respond in JSON format with \"thought\" and \"response\" keys.\n"+
		"The \"thought\" should be your internal reasoning.\n"+
		"The \"response\" is the final message to the user.",
		cfg.BaseModel, datasetSize, modality)
}
