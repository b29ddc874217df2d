package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-dialogue/core/texttospeech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeRechunksAudio(t *testing.T) {
	var request synthesisRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-1/stream", r.URL.Path)
		assert.Equal(t, "pcm_16000", r.URL.Query().Get("output_format"))
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		// 1600 + 3200 + 1001 bytes, the trailing odd byte is half a sample.
		flusher := w.(http.Flusher)
		for _, n := range []int{1000, 4000, 801} {
			_, _ = w.Write(make([]byte, n))
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := NewClient("test-key", "voice-1", WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	var sizes []int
	for chunk, err := range client.Synthesize(context.Background(), "Hello there.") {
		require.NoError(t, err)
		sizes = append(sizes, len(chunk))
	}

	assert.Equal(t, []int{1600, 3200, 1000}, sizes)
	assert.Equal(t, "Hello there.", request.Text)
	assert.Equal(t, DefaultModel, request.ModelID)
	assert.InDelta(t, DefaultSpeed, request.VoiceSettings.Speed, 1e-9)
}

func TestSynthesizeReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"voice_not_found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test-key", "missing", WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	var streamErr error
	for _, err := range client.Synthesize(context.Background(), "Hello.") {
		streamErr = err
	}
	require.Error(t, streamErr)
	assert.Contains(t, streamErr.Error(), "voice_not_found")
}

func TestSynthesisOptionsOverrideDefaults(t *testing.T) {
	client := NewClient("test-key", "voice-1", WithSynthesisOptions(
		texttospeech.WithModel("eleven_multilingual_v2"),
		texttospeech.WithSpeed(0.9),
	))

	assert.Equal(t, "eleven_multilingual_v2", client.options.Model)
	assert.InDelta(t, 0.9, client.options.Speed, 1e-9)
	assert.Equal(t, "voice-1", client.options.Voice)
}
