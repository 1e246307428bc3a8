package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	f := &fakeProvider{text: `{"thought":"The user greets me.","response":"Hello from the lab."}`}
	c := newTestClient(t, f)

	reply, err := c.Chat(context.Background(), "key", "You are ForgeAI.", "hello", "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "The user greets me.", reply.Thought)
	assert.Equal(t, "Hello from the lab.", reply.Response)
	assert.Equal(t, "/v1beta/models/test-model:generateContent", f.path.Load())

	req := f.request(t)
	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "You are ForgeAI.", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents[0].Parts, 2)
	assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)
	require.NotNil(t, req.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", req.Contents[0].Parts[1].InlineData.MimeType)
	assert.Equal(t, "AAAA", req.Contents[0].Parts[1].InlineData.Data)
	assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
}

func TestChat_ImageOnly(t *testing.T) {
	f := &fakeProvider{text: `{"response":"A cat."}`}
	c := newTestClient(t, f)

	reply, err := c.Chat(context.Background(), "key", "sys", " ", "BBBB")
	require.NoError(t, err)
	assert.Equal(t, "A cat.", reply.Response)

	parts := f.request(t).Contents[0].Parts
	assert.Equal(t, "Analyze this image.", parts[0].Text)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)
}

func TestChat_InvalidAttachment(t *testing.T) {
	f := &fakeProvider{text: `{"response":"x"}`}
	c := newTestClient(t, f)

	_, err := c.Chat(context.Background(), "key", "sys", "hi", "data:image/png,plain")
	assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestChat_ReplyWithoutResponse(t *testing.T) {
	c := newTestClient(t, &fakeProvider{text: `{"thought":"hmm"}`})

	_, err := c.Chat(context.Background(), "key", "sys", "hi", "")
	assert.True(t, errors.Is(err, ErrInvalidResponse), "got %v", err)
}

func TestSynthesizeAudio(t *testing.T) {
	f := &fakeProvider{body: `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"UENN"}}]}}]}`}
	c := newTestClient(t, f)

	uri, err := c.SynthesizeAudio(context.Background(), "key", "Welcome to the forge.", "")
	require.NoError(t, err)
	assert.Equal(t, "data:audio/pcm;base64,UENN", uri)
	assert.Equal(t, "/v1beta/models/"+defaultSpeechModel+":generateContent", f.path.Load())

	req := f.request(t)
	assert.Equal(t, "Welcome to the forge.", req.Contents[0].Parts[0].Text)
	assert.Equal(t, []string{"AUDIO"}, req.GenerationConfig.ResponseModalities)
	require.NotNil(t, req.GenerationConfig.SpeechConfig)
	assert.Equal(t, DefaultVoice, req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
}

func TestSynthesizeAudio_NoAudio(t *testing.T) {
	c := newTestClient(t, &fakeProvider{text: "I cannot speak"})

	_, err := c.SynthesizeAudio(context.Background(), "key", "hi", "Puck")
	assert.True(t, errors.Is(err, ErrInvalidResponse), "got %v", err)
}

// fakeVideoProvider serves the long-running video operation and the file download
type fakeVideoProvider struct {
	server      *httptest.Server
	pendingPoll int32
	polls       atomic.Int32
	opError     string
	downloadURL string
	downloadKey atomic.Value
	startReq    atomic.Value
}

func newFakeVideoProvider(t *testing.T, pending int32) *fakeVideoProvider {
	t.Helper()
	f := &fakeVideoProvider{pendingPoll: pending}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1beta/models/veo-test:predictLongRunning", func(w http.ResponseWriter, r *http.Request) {
		var req videoRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.startReq.Store(req)
		_, _ = w.Write([]byte(`{"name":"models/veo-test/operations/op1"}`))
	})
	mux.HandleFunc("/v1beta/models/veo-test/operations/op1", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		if n <= f.pendingPoll {
			_, _ = w.Write([]byte(`{"name":"models/veo-test/operations/op1","done":false}`))
			return
		}
		if f.opError != "" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"done":  true,
				"error": map[string]interface{}{"code": 3, "message": f.opError},
			})
			return
		}
		uri := f.downloadURL
		if uri == "" {
			uri = f.server.URL + "/files/clip.mp4?alt=media"
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"done": true,
			"response": map[string]interface{}{
				"generateVideoResponse": map[string]interface{}{
					"generatedSamples": []map[string]interface{}{{"video": map[string]string{"uri": uri}}},
				},
			},
		})
	})
	mux.HandleFunc("/files/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		f.downloadKey.Store(r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("clip"))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeVideoProvider) client() *Client {
	return NewClient(Config{
		BaseURL:           f.server.URL + "/v1beta",
		VideoModel:        "veo-test",
		VideoPollInterval: time.Millisecond,
		Timeout:           5 * time.Second,
		RequestsPerMinute: 60000,
		Burst:             100,
	}, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestSynthesizeVideo(t *testing.T) {
	f := newFakeVideoProvider(t, 2)

	uri, err := f.client().SynthesizeVideo(context.Background(), "key", "a forge at dawn")
	require.NoError(t, err)
	assert.Equal(t, "data:video/mp4;base64,"+base64.StdEncoding.EncodeToString([]byte("clip")), uri)
	assert.Equal(t, int32(3), f.polls.Load())
	assert.Equal(t, "key", f.downloadKey.Load(), "provider host receives the key")

	req, ok := f.startReq.Load().(videoRequest)
	require.True(t, ok)
	require.Len(t, req.Instances, 1)
	assert.Equal(t, "a forge at dawn", req.Instances[0].Prompt)
	assert.Equal(t, "16:9", req.Parameters.AspectRatio)
}

func TestSynthesizeVideo_OperationError(t *testing.T) {
	f := newFakeVideoProvider(t, 0)
	f.opError = "prompt rejected"

	_, err := f.client().SynthesizeVideo(context.Background(), "key", "p")
	require.Error(t, err)
	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeUnknown, ce.Type)
	assert.Contains(t, err.Error(), "prompt rejected")
}

func TestSynthesizeVideo_DeadlineWhilePolling(t *testing.T) {
	f := newFakeVideoProvider(t, 1<<30)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.client().SynthesizeVideo(ctx, "key", "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
}

func TestSynthesizeVideo_ForeignHostGetsNoKey(t *testing.T) {
	other := newFakeVideoProvider(t, 0)
	f := newFakeVideoProvider(t, 0)
	f.downloadURL = other.server.URL + "/files/clip.mp4"

	uri, err := f.client().SynthesizeVideo(context.Background(), "key", "p")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:video/mp4;base64,"))
	assert.Equal(t, "", other.downloadKey.Load())
}

func TestSynthesizeVideo_MissingCredential(t *testing.T) {
	f := newFakeVideoProvider(t, 0)

	_, err := f.client().SynthesizeVideo(context.Background(), "", "p")
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Equal(t, int32(0), f.polls.Load())
}
