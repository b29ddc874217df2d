package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultURL   = "wss://api.deepgram.com/v1/speak"
	DefaultVoice = "aura-2-thalia-en"
)

var ErrClosed = errors.New("deepgram speech client closed")

// TextToSpeechClient keeps one websocket to Deepgram's streaming speech API
// open and synthesizes one text at a time over it. Every text is followed by
// a flush, and its audio ends when Deepgram confirms the flush.
type TextToSpeechClient struct {
	apiKey  string
	url     string
	options texttospeech.SynthesisOptions

	// mu is held for the whole synthesis of one text.
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

type ClientOption func(*TextToSpeechClient)

func WithURL(url string) ClientOption {
	return func(c *TextToSpeechClient) { c.url = url }
}

func WithSynthesisOptions(opts ...texttospeech.SynthesisOption) ClientOption {
	return func(c *TextToSpeechClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) *TextToSpeechClient {
	c := &TextToSpeechClient{
		apiKey:  apiKey,
		url:     DefaultURL,
		options: texttospeech.NewSynthesisOptions(texttospeech.WithVoice(DefaultVoice)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

func speakMsg(text string) websocketMessage {
	return websocketMessage{Type: "Speak", Text: text}
}

type incomingMessage struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	ErrCode     string `json:"err_code"`
}

func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string) texttospeech.AudioStream {
	return func(yield func([]byte, error) bool) {
		ctx, span := tracer.Start(ctx, "synthesize with deepgram")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.voice", c.options.Voice),
			attribute.Int("request.text_length", len(text)),
		)

		c.mu.Lock()
		defer c.mu.Unlock()

		conn, err := c.connect(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
			return
		}

		// Reads block on the socket, so cancellation closes it. The connection
		// is dropped whenever a synthesis does not run to its flush.
		stopAfter := context.AfterFunc(ctx, func() { _ = conn.Close() })
		completed := false
		defer func() {
			if !stopAfter() || !completed {
				c.dropConnection(conn)
			}
		}()

		if err := conn.WriteJSON(speakMsg(text)); err != nil {
			yield(nil, c.writeError(ctx, span, err))
			return
		}
		if err := conn.WriteJSON(flushMsg); err != nil {
			yield(nil, c.writeError(ctx, span, err))
			return
		}

		chunkCount := 0
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return
				}
				err = fmt.Errorf("failed to read from deepgram websocket: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield(nil, err)
				return
			}

			switch msgType {
			case websocket.BinaryMessage:
				if len(msg) == 0 {
					continue
				}
				chunkCount++
				if !yield(msg, nil) {
					return
				}
			case websocket.TextMessage:
				var parsed incomingMessage
				if err := json.Unmarshal(msg, &parsed); err != nil {
					logger.Debug("failed to unmarshal deepgram message", "error", err)
					continue
				}

				switch parsed.Type {
				case "Flushed":
					completed = true
					span.SetAttributes(attribute.Int("response.chunks", chunkCount))
					return
				case "Warning":
					logger.Warn("deepgram warning", "description", parsed.Description, "code", parsed.ErrCode)
				case "Error":
					err := fmt.Errorf("deepgram error %s: %s", parsed.ErrCode, parsed.Description)
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					yield(nil, err)
					return
				}
			}
		}
	}
}

// connect returns the open connection or dials a new one. Callers hold mu.
func (c *TextToSpeechClient) connect(ctx context.Context) (*websocket.Conn, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}

	encoding, err := convertEncoding(c.options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	speakURL, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	query := speakURL.Query()
	query.Set("model", c.options.Voice)
	query.Set("encoding", encoding)
	query.Set("sample_rate", strconv.Itoa(c.options.EncodingInfo.SampleRate))
	speakURL.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	c.conn = conn
	return conn, nil
}

func (c *TextToSpeechClient) dropConnection(conn *websocket.Conn) {
	_ = conn.Close()
	if c.conn == conn {
		c.conn = nil
	}
}

func (c *TextToSpeechClient) writeError(ctx context.Context, span trace.Span, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err = fmt.Errorf("failed to write to deepgram websocket: %w", err)
	span.RecordError(err)
	return err
}

// Close ends the connection. Synthesis after Close fails with [ErrClosed].
func (c *TextToSpeechClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil
	if err := conn.WriteJSON(closeMsg); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return fmt.Errorf("failed to close websocket: %w", errors.Join(err, closeErr))
		}
		return nil
	}
	return conn.Close()
}

func convertEncoding(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 8000, 16000, 24000, 32000, 48000:
			return "linear16", nil
		}
	case audio.EncodingMulaw, audio.EncodingALaw:
		if encoding.SampleRate == 8000 || encoding.SampleRate == 16000 {
			return encoding.Format.Name(), nil
		}
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding.Format)
	}
	return "", fmt.Errorf("unsupported sample rate %d for %s encoding", encoding.SampleRate, encoding.Format)
}
