package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultURL      = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	DefaultModel    = "scribe_v2_realtime"
	DefaultLanguage = "de"
)

// TranscriptionClient streams audio to ElevenLabs Scribe. It uses the manual
// commit strategy: an utterance is only finalized when [TranscriptionClient.Commit]
// is called, typically after voice activity detection on the client side
// noticed the end of speech.
type TranscriptionClient struct {
	apiKey string
	url    string
	model  string

	connMu     sync.Mutex
	conn       *websocket.Conn
	sampleRate int
}

type ClientOption func(*TranscriptionClient)

func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) { c.url = url }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) *TranscriptionClient {
	c := &TranscriptionClient{apiKey: apiKey, url: DefaultURL, model: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type inputAudioChunk struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

type incomingMessage struct {
	MessageType string `json:"message_type"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Transcript  string `json:"transcript"`
	IsFinal     *bool  `json:"is_final"`
	Final       bool   `json:"final"`
	Message     string `json:"message"`
	Error       string `json:"error"`
}

func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	ctx, span := tracer.Start(ctx, "start elevenlabs transcription")
	defer span.End()

	options := speechtotext.NewTranscriptionOptions(opts...)
	if options.EncodingInfo.Format != audio.EncodingLinear16 {
		err := fmt.Errorf("unsupported encoding %q", options.EncodingInfo.Format)
		span.RecordError(err)
		return fmt.Errorf("invalid encoding: %w", err)
	}
	language := options.Language
	if language == "" {
		language = DefaultLanguage
	}

	realtimeURL, err := url.Parse(s.url)
	if err != nil {
		return fmt.Errorf("invalid elevenlabs url: %w", err)
	}
	sampleRate := options.EncodingInfo.SampleRate
	queryParams := realtimeURL.Query()
	queryParams.Set("model_id", s.model)
	queryParams.Set("encoding", options.EncodingInfo.String())
	queryParams.Set("sample_rate", strconv.Itoa(sampleRate))
	queryParams.Set("commit_strategy", "manual")
	queryParams.Set("language_code", language)
	realtimeURL.RawQuery = queryParams.Encode()
	span.SetAttributes(
		attribute.String("request.model", s.model),
		attribute.String("request.language", language),
	)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, realtimeURL.String(),
		http.Header{"xi-api-key": {s.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to elevenlabs: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.connMu.Lock()
	s.conn = conn
	s.sampleRate = sampleRate
	s.connMu.Unlock()

	go s.readAndProcessMessages(ctx, conn, options)

	return nil
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	if len(audio) == 0 {
		return nil
	}
	return s.writeChunk(base64.StdEncoding.EncodeToString(audio), false)
}

// Commit finalizes the utterance heard so far. The committed transcript
// arrives through the transcription callback.
func (s *TranscriptionClient) Commit() error {
	if err := s.writeChunk("", true); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) writeChunk(encodedAudio string, commit bool) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return errors.New("elevenlabs connection closed")
	}
	if err := s.conn.WriteJSON(inputAudioChunk{
		MessageType: "input_audio_chunk",
		AudioBase64: encodedAudio,
		Commit:      commit,
		SampleRate:  s.sampleRate,
	}); err != nil {
		return fmt.Errorf("failed to write to elevenlabs client: %w", err)
	}
	return nil
}

func (s *TranscriptionClient) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

func (s *TranscriptionClient) isClosed(conn *websocket.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != conn
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil && !s.isClosed(conn) {
				logger.Error("failed to read elevenlabs websocket message", "error", err)
				if options.ErrorCallback != nil {
					options.ErrorCallback(fmt.Errorf("elevenlabs connection lost: %w", err))
				}
			}

			s.connMu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType == websocket.TextMessage {
			processMessage(msg, options)
		}
	}
}

func processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsed incomingMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		logger.Debug("failed to unmarshal elevenlabs message", "error", err)
		return
	}

	messageType := parsed.MessageType
	if messageType == "" {
		messageType = parsed.Type
	}

	switch messageType {
	case "partial_transcript":
		interim(parsed.Text, options)

	case "transcript":
		text := parsed.Text
		if text == "" {
			text = parsed.Transcript
		}
		isFinal := parsed.Final
		if parsed.IsFinal != nil {
			isFinal = *parsed.IsFinal
		}
		if isFinal {
			final(text, options)
		} else {
			interim(text, options)
		}

	case "committed_transcript":
		final(parsed.Text, options)

	case "session_started":
		logger.Info("elevenlabs transcription session started")

	case "error", "auth_error", "rate_limited":
		description := parsed.Message
		if description == "" {
			description = parsed.Error
		}
		if description == "" {
			description = string(msg)
		}
		logger.Error("elevenlabs transcription error", "type", messageType, "message", description)
		if options.ErrorCallback != nil {
			options.ErrorCallback(fmt.Errorf("elevenlabs %s: %s", messageType, description))
		}
	}
}

func interim(text string, options speechtotext.TranscriptionOptions) {
	if strings.TrimSpace(text) != "" && options.InterimTranscriptionCallback != nil {
		options.InterimTranscriptionCallback(text)
	}
}

func final(text string, options speechtotext.TranscriptionOptions) {
	if strings.TrimSpace(text) != "" && options.TranscriptionCallback != nil {
		options.TranscriptionCallback(text)
	}
}
