// Package gemini provides a client for the Gemini generateContent REST API, used to
// generate and review curriculum, design runs and render Modelfiles.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel       = "gemini-2.0-flash"
	defaultSpeechModel = "gemini-2.5-flash-preview-tts"
	defaultVideoModel  = "veo-3.1-fast-generate-preview"

	maxResponseBytes = 8 << 20
)

// Config holds configuration options for the client
type Config struct {
	// BaseURL is the API root up to and including the version segment
	BaseURL string
	// Model is the model used for text and JSON calls
	Model string
	// SpeechModel renders text to audio
	SpeechModel string
	// VideoModel runs long-running video generation
	VideoModel string
	// VideoPollInterval is the wait between video operation polls
	VideoPollInterval time.Duration
	// MaxMediaBytes bounds a downloaded video
	MaxMediaBytes int64
	// Timeout for a single request
	Timeout time.Duration
	// RequestsPerMinute caps outgoing calls; bursts up to Burst are allowed
	RequestsPerMinute int
	Burst             int
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		Model:             defaultModel,
		SpeechModel:       defaultSpeechModel,
		VideoModel:        defaultVideoModel,
		VideoPollInterval: 5 * time.Second,
		MaxMediaBytes:     64 << 20,
		Timeout:           60 * time.Second,
		RequestsPerMinute: 15,
		Burst:             3,
	}
}

// Client calls the provider. The API key is passed explicitly on every call and
// never stored by the client. The Client is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a client, filling zero config values with defaults
func NewClient(config Config, log zerolog.Logger) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.SpeechModel == "" {
		config.SpeechModel = def.SpeechModel
	}
	if config.VideoModel == "" {
		config.VideoModel = def.VideoModel
	}
	if config.VideoPollInterval <= 0 {
		config.VideoPollInterval = def.VideoPollInterval
	}
	if config.MaxMediaBytes <= 0 {
		config.MaxMediaBytes = def.MaxMediaBytes
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), config.Burst),
		log:        log.With().Str("component", "gemini").Logger(),
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.config.Model
}

// generateJSON asks for a JSON response matching responseSchema and decodes it into out
func (c *Client) generateJSON(ctx context.Context, apiKey, prompt string, responseSchema schema, out interface{}) error {
	text, err := c.generate(ctx, apiKey, prompt, &generationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   responseSchema,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(stripFence(text)), out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "response is not the expected JSON", Cause: err}
	}
	return nil
}

// generate performs one generateContent call and returns the concatenated text parts
func (c *Client) generate(ctx context.Context, apiKey, prompt string, genConfig *generationConfig) (string, error) {
	parsed, err := c.generateContent(ctx, apiKey, c.config.Model, generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: genConfig,
	})
	if err != nil {
		return "", err
	}
	return responseText(parsed)
}

// generateContent sends req to model and returns the decoded response, which
// always has at least one candidate
func (c *Client) generateContent(ctx context.Context, apiKey, model string, req generateRequest) (*generateResponse, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingCredential
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.config.BaseURL, model)
	raw, _, err := c.send(ctx, apiKey, http.MethodPost, url, req, maxResponseBytes)
	if err != nil {
		return nil, err
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "prompt blocked: " + parsed.PromptFeedback.BlockReason}
	}
	if len(parsed.Candidates) == 0 {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "response has no candidates"}
	}
	return &parsed, nil
}

// wait blocks until the rate limiter admits one more provider call
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &ClientError{Type: ErrTypeRateLimited, Message: "rate limiter wait aborted", Cause: err}
	}
	return nil
}

// send performs one HTTP call. body is JSON-encoded when non-nil. A non-200 status
// is mapped to a ClientError. It returns the body read up to limit bytes and the
// response content type.
func (c *Client) send(ctx context.Context, apiKey, method, url string, body interface{}, limit int64) ([]byte, string, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, "", &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, "", &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, "", ErrTimeout
		}
		return nil, "", &ClientError{Type: ErrTypeConnection, Message: "provider unreachable", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", &ClientError{Type: ErrTypeConnection, Message: "failed to read response", Cause: err}
	}

	c.log.Debug().
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Int("bytes", len(raw)).
		Msg("Provider call")

	if resp.StatusCode != http.StatusOK {
		return nil, "", statusError(resp.StatusCode, raw)
	}
	if int64(len(raw)) > limit {
		return nil, "", &ClientError{Type: ErrTypeInvalidResponse, Message: fmt.Sprintf("response exceeds %d bytes", limit)}
	}
	return raw, resp.Header.Get("Content-Type"), nil
}

// responseText concatenates the text parts of the first candidate
func responseText(parsed *generateResponse) (string, error) {
	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "response has no text"}
	}
	return sb.String(), nil
}

func statusError(status int, body []byte) error {
	var envelope apiError
	message := http.StatusText(status)
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ClientError{Type: ErrTypeUnauthorized, Message: "provider rejected the API key", Cause: errors.New(message)}
	case http.StatusTooManyRequests:
		return &ClientError{Type: ErrTypeRateLimited, Message: "provider rate limit exceeded", Cause: errors.New(message)}
	case http.StatusBadRequest:
		// An invalid key is reported as 400 INVALID_ARGUMENT
		if strings.Contains(strings.ToLower(message), "api key") {
			return &ClientError{Type: ErrTypeUnauthorized, Message: "provider rejected the API key", Cause: errors.New(message)}
		}
	}
	return &ClientError{Type: ErrTypeUnknown, Message: fmt.Sprintf("provider returned %d", status), Cause: errors.New(message)}
}

// stripFence removes a markdown code fence some models wrap around JSON
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
}
