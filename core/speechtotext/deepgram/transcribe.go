package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultURL   = "wss://api.deepgram.com/v1/listen"
	DefaultModel = "nova-3"

	silenceAfter      = 50 * time.Millisecond
	silenceFor        = time.Second
	keepAliveInterval = 5 * time.Second
)

// TranscriptionClient streams audio to Deepgram's live transcription API.
// Final segments are joined until Deepgram reports the end of the utterance.
type TranscriptionClient struct {
	apiKey string
	url    string
	model  string

	connMu    sync.Mutex
	conn      *websocket.Conn
	lastMsgTs time.Time

	transcriptMu          sync.Mutex
	accumulatedTranscript string
	unendedSegment        bool
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

func (s *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	ctx, span := tracer.Start(ctx, "start deepgram transcription")
	defer span.End()

	options := speechtotext.NewTranscriptionOptions(opts...)
	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("invalid encoding: %w", err)
	}

	listenURL, err := url.Parse(s.url)
	if err != nil {
		return fmt.Errorf("invalid deepgram url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", s.model)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	if options.Language != "" {
		queryParams.Set("language", options.Language)
	}
	listenURL.RawQuery = queryParams.Encode()
	span.SetAttributes(attribute.String("request.model", s.model))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to deepgram: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.connMu.Lock()
	s.conn = conn
	s.lastMsgTs = time.Now()
	s.connMu.Unlock()

	go s.readAndProcessMessages(ctx, conn, options)

	return nil
}

func (s *TranscriptionClient) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return errors.New("deepgram connection closed")
	}

	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// Commit asks Deepgram to finalize what it has heard so far.
func (s *TranscriptionClient) Commit() error {
	return s.writeControl("Finalize")
}

func (s *TranscriptionClient) Close() error {
	err := s.writeControl(string(api.TypeCloseStreamResponse))

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		if closeErr := s.conn.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		s.conn = nil
	}
	return err
}

func (s *TranscriptionClient) writeControl(messageType string) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}
	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: messageType}); err != nil {
		return fmt.Errorf("failed to send %s to deepgram: %w", messageType, err)
	}
	return nil
}

func (s *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	silenceCtx, silenceCancel := context.WithCancel(ctx)
	defer silenceCancel()

	go s.generateSilence(silenceCtx, options.EncodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil && !s.isClosed(conn) {
				logger.Error("failed to read deepgram websocket message", "error", err)
				if options.ErrorCallback != nil {
					options.ErrorCallback(fmt.Errorf("deepgram connection lost: %w", err))
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
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg, options)
		}
	}
}

func (s *TranscriptionClient) isClosed(conn *websocket.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != conn
}

func (s *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return
		}
		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}
		s.handleResult(transcript, msgResp.IsFinal, msgResp.SpeechFinal, options)

	case api.TypeUtteranceEndResponse:
		s.transcriptMu.Lock()
		unended := s.unendedSegment
		s.transcriptMu.Unlock()
		if unended {
			s.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		s.transcriptMu.Lock()
		s.unendedSegment = true
		s.transcriptMu.Unlock()

	case "Error":
		if options.ErrorCallback != nil {
			options.ErrorCallback(fmt.Errorf("deepgram error: %s", parsedMsg.Description))
		}
	}
}

func (s *TranscriptionClient) handleResult(transcript string, isFinal, speechFinal bool, options speechtotext.TranscriptionOptions) {
	s.transcriptMu.Lock()
	if isFinal && transcript != "" {
		s.accumulatedTranscript = strings.TrimSpace(s.accumulatedTranscript + " " + transcript)
		s.unendedSegment = true
	}
	interim := strings.TrimSpace(s.accumulatedTranscript + " " + transcript)
	s.transcriptMu.Unlock()

	if !isFinal && transcript != "" && options.InterimTranscriptionCallback != nil {
		options.InterimTranscriptionCallback(interim)
	}
	if speechFinal {
		s.onSpeechEnded(options)
	}
}

func (s *TranscriptionClient) onSpeechEnded(options speechtotext.TranscriptionOptions) {
	s.transcriptMu.Lock()
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""
	s.unendedSegment = false
	s.transcriptMu.Unlock()

	if len(fullTranscript) > 0 && options.TranscriptionCallback != nil {
		options.TranscriptionCallback(fullTranscript)
	}
}

// generateSilence pads short pauses in the input with silence so that
// endpointing keeps working, then falls back to keep-alive messages.
func (s *TranscriptionClient) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	ticker := time.NewTicker(silenceAfter)
	defer ticker.Stop()

	chunk := make([]byte, encoding.FrameSize(silenceAfter))
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	state := silenceGeneratorStateWaiting
	var firstSilenceTime, lastKeepAliveTime time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.connMu.Lock()
		sinceLastAudio := time.Since(s.lastMsgTs)
		s.connMu.Unlock()

		switch state {
		case silenceGeneratorStateWaiting:
			if sinceLastAudio > silenceAfter {
				state = silenceGeneratorStateSilence
				firstSilenceTime = time.Now()
			}

		case silenceGeneratorStateSilence:
			if sinceLastAudio < silenceAfter {
				state = silenceGeneratorStateWaiting
				continue
			}
			if time.Since(firstSilenceTime) >= silenceFor {
				state = silenceGeneratorStateKeepAlive
				lastKeepAliveTime = time.Now()
				continue
			}
			if err := s.sendSilence(chunk); err != nil {
				logger.Debug("failed to send silence", "error", err)
			}

		case silenceGeneratorStateKeepAlive:
			if sinceLastAudio < silenceAfter {
				state = silenceGeneratorStateWaiting
				continue
			}
			if time.Since(lastKeepAliveTime) >= keepAliveInterval {
				lastKeepAliveTime = time.Now()
				if err := s.writeControl("KeepAlive"); err != nil {
					logger.Debug("failed to send keep-alive", "error", err)
				}
			}
		}
	}
}

func (s *TranscriptionClient) sendSilence(chunk []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return errors.New("deepgram connection closed")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}
