// Package ollama provides a read-only status client for a local Ollama daemon.
// The studio only asks whether the daemon is up and which models it has installed.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL uses the IPv4 loopback to avoid IPv6 resolution issues
const DefaultBaseURL = "http://127.0.0.1:11434"

// ClientError represents an error from the Ollama client
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking
var (
	ErrNotRunning = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout    = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
)

// ClientConfig holds configuration options for the Ollama client
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	BaseURL string

	// Timeout for each request (default: 5s). Status probes should fail fast.
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig() ClientConfig {
	return ClientConfig{
		BaseURL: DefaultBaseURL,
		Timeout: 5 * time.Second,
	}
}

// RuntimeStatus is the advisory availability report of the local runtime
type RuntimeStatus struct {
	Available bool      `json:"available"`
	Endpoint  string    `json:"endpoint"`
	Models    []string  `json:"models"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

// Model is one installed model as reported by /api/tags
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

// Client talks to the Ollama HTTP API. It is safe for concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

// NewClient creates a client, filling zero config values with defaults
func NewClient(config ClientConfig, log zerolog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		now:        time.Now,
		log:        log.With().Str("component", "ollama").Logger(),
	}
}

// Endpoint returns the configured base URL
func (c *Client) Endpoint() string {
	return c.config.BaseURL
}

// CheckRunning verifies that Ollama is reachable and running
func (c *Client) CheckRunning(ctx context.Context) error {
	resp, err := c.get(ctx, c.config.BaseURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}
	return nil
}

// ListModels returns the installed models
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := c.get(ctx, c.config.BaseURL+"/api/tags")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode model list", Cause: err}
	}
	if tags.Models == nil {
		tags.Models = []Model{}
	}
	return tags.Models, nil
}

// ModelNames returns the sorted names of the installed models
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Status probes the daemon and never returns an error: failures are reported as
// an unavailable status.
func (c *Client) Status(ctx context.Context) RuntimeStatus {
	status := RuntimeStatus{
		Endpoint:  c.config.BaseURL,
		Models:    []string{},
		CheckedAt: c.now(),
	}

	if err := c.CheckRunning(ctx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Available = true

	names, err := c.ModelNames(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Runtime is up but model listing failed")
		status.Error = err.Error()
		return status
	}
	status.Models = names
	return status
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	return resp, nil
}
