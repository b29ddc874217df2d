package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultModel   = "eleven_flash_v2_5"
	DefaultSpeed   = 1.1

	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75

	firstChunkDuration = 50 * time.Millisecond
	chunkDuration      = 100 * time.Millisecond
	readBufferSize     = 8192
)

// Client synthesizes speech with the ElevenLabs streaming endpoint. Audio is
// regrouped into 100 ms chunks, with a 50 ms first chunk so playback can
// start early.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	options    texttospeech.SynthesisOptions
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithSynthesisOptions(opts ...texttospeech.SynthesisOption) ClientOption {
	return func(c *Client) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewClient(apiKey string, voiceID string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
		options: texttospeech.NewSynthesisOptions(
			texttospeech.WithVoice(voiceID),
			texttospeech.WithModel(DefaultModel),
			texttospeech.WithSpeed(DefaultSpeed),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (c *Client) Synthesize(ctx context.Context, text string) texttospeech.AudioStream {
	return func(yield func([]byte, error) bool) {
		ctx, span := tracer.Start(ctx, "synthesize with elevenlabs")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.model", c.options.Model),
			attribute.String("request.voice", c.options.Voice),
			attribute.Int("request.text_length", len(text)),
		)

		resp, err := c.post(ctx, text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		encodingInfo := c.options.EncodingInfo
		chunker := audio.NewChunker(encodingInfo,
			encodingInfo.FrameSize(firstChunkDuration),
			encodingInfo.FrameSize(chunkDuration),
		)

		chunkCount := 0
		buffer := make([]byte, readBufferSize)
		for {
			n, readErr := resp.Body.Read(buffer)
			for _, chunk := range chunker.Write(buffer[:n]) {
				chunkCount++
				if !yield(chunk, nil) {
					return
				}
			}

			if errors.Is(readErr, io.EOF) {
				break
			}
			if readErr != nil {
				err := fmt.Errorf("failed to read audio stream: %w", readErr)
				if ctx.Err() == nil {
					span.RecordError(err)
				}
				yield(nil, err)
				return
			}
		}

		if rest := chunker.Flush(); len(rest) > 0 {
			chunkCount++
			if !yield(rest, nil) {
				return
			}
		}

		span.SetAttributes(attribute.Int("response.chunks", chunkCount))
		if chunkCount == 0 {
			logger.Warn("no audio returned", "text", text)
		}
	}
}

func (c *Client) post(ctx context.Context, text string) (*http.Response, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.options.Model,
		VoiceSettings: voiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultSimilarityBoost,
			Speed:           c.options.Speed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "v1", "text-to-speech", c.options.Voice, "stream")
	if err != nil {
		return nil, fmt.Errorf("invalid elevenlabs url: %w", err)
	}
	endpoint += "?" + url.Values{"output_format": {c.options.EncodingInfo.String()}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("non-OK HTTP status %s: %s", resp.Status, bytes.TrimSpace(errorBody))
	}
	return resp, nil
}
