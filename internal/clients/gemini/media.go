package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/llamaforge/internal/domain"
)

// DefaultVoice is the prebuilt voice used when none is requested
const DefaultVoice = "Kore"

// Chat sends one test bench message under systemInstruction. image is an optional
// data URI attached as inline data. The model answers with a thought and a response.
func (c *Client) Chat(ctx context.Context, apiKey, systemInstruction, message, image string) (domain.ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		message = "Analyze this image."
	}
	parts := []part{{Text: message}}
	if image != "" {
		data, err := parseDataURI(image, "image/jpeg")
		if err != nil {
			return domain.ChatReply{}, err
		}
		parts = append(parts, part{InlineData: data})
	}

	parsed, err := c.generateContent(ctx, apiKey, c.config.Model, generateRequest{
		Contents:          []content{{Role: "user", Parts: parts}},
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: objectSchema(map[string]schema{
				"thought":  stringProp("internal reasoning"),
				"response": stringProp("final message to the user"),
			}, "response"),
		},
	})
	if err != nil {
		return domain.ChatReply{}, err
	}
	text, err := responseText(parsed)
	if err != nil {
		return domain.ChatReply{}, err
	}

	var reply domain.ChatReply
	if err := json.Unmarshal([]byte(stripFence(text)), &reply); err != nil {
		return domain.ChatReply{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "chat reply is not the expected JSON", Cause: err}
	}
	if strings.TrimSpace(reply.Response) == "" {
		return domain.ChatReply{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "chat reply has no response"}
	}
	return reply, nil
}

// SynthesizeAudio renders text as speech and returns it as a data URI of raw PCM
func (c *Client) SynthesizeAudio(ctx context.Context, apiKey, text, voice string) (string, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	speech := &speechConfig{}
	speech.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice

	parsed, err := c.generateContent(ctx, apiKey, c.config.SpeechModel, generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       speech,
		},
	})
	if err != nil {
		return "", err
	}

	for _, p := range parsed.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return "data:audio/pcm;base64," + p.InlineData.Data, nil
		}
	}
	return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "response has no audio"}
}

// SynthesizeVideo starts a video generation operation, polls it until done and
// returns the downloaded clip as a data URI. ctx bounds the whole operation.
func (c *Client) SynthesizeVideo(ctx context.Context, apiKey, prompt string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingCredential
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	body := videoRequest{
		Instances:  []videoInstance{{Prompt: prompt}},
		Parameters: videoParameters{AspectRatio: "16:9", Resolution: "720p", SampleCount: 1},
	}
	startURL := fmt.Sprintf("%s/models/%s:predictLongRunning", c.config.BaseURL, c.config.VideoModel)
	raw, _, err := c.send(ctx, apiKey, http.MethodPost, startURL, body, maxResponseBytes)
	if err != nil {
		return "", err
	}

	var op operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode operation", Cause: err}
	}
	if op.Name == "" && !op.Done {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "operation has no name"}
	}
	c.log.Info().Str("operation", op.Name).Msg("Video generation started")

	polls := 0
	for !op.Done {
		timer := time.NewTimer(c.config.VideoPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", &ClientError{Type: ErrTypeTimeout, Message: "video generation did not finish", Cause: ctx.Err()}
		case <-timer.C:
		}

		raw, _, err := c.send(ctx, apiKey, http.MethodGet, c.config.BaseURL+"/"+strings.TrimLeft(op.Name, "/"), nil, maxResponseBytes)
		if err != nil {
			return "", err
		}
		op = operation{}
		if err := json.Unmarshal(raw, &op); err != nil {
			return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode operation", Cause: err}
		}
		polls++
	}

	if op.Error != nil {
		return "", &ClientError{Type: ErrTypeUnknown, Message: "video generation failed", Cause: fmt.Errorf("%d: %s", op.Error.Code, op.Error.Message)}
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 ||
		op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI == "" {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "operation finished without a video"}
	}
	videoURI := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI

	// The key only goes to the provider's own host
	downloadKey := ""
	if c.sameHost(videoURI) {
		downloadKey = apiKey
	}
	clip, contentType, err := c.send(ctx, downloadKey, http.MethodGet, videoURI, nil, c.config.MaxMediaBytes)
	if err != nil {
		return "", err
	}

	mediaType := "video/mp4"
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(parsed, "video/") {
		mediaType = parsed
	}

	c.log.Info().Int("polls", polls).Int("bytes", len(clip)).Msg("Video generation finished")
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(clip), nil
}

func (c *Client) sameHost(rawURL string) bool {
	target, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(target.Host, base.Host)
}

// parseDataURI splits a base64 data URI into inline data. A bare base64 payload
// is accepted with fallbackType.
func parseDataURI(uri, fallbackType string) (*inlineData, error) {
	if !strings.HasPrefix(uri, "data:") {
		return &inlineData{MimeType: fallbackType, Data: uri}, nil
	}
	header, data, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") || data == "" {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "attachment must be a base64 data URI"}
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = fallbackType
	}
	return &inlineData{MimeType: mimeType, Data: data}, nil
}
