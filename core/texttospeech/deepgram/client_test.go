package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dialogue/core/audio"
)

// newSpeakStub answers every Speak + Flush pair with reply and counts the
// websocket connections it accepted.
func newSpeakStub(t *testing.T, reply func(conn *websocket.Conn, text string) bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("expected token auth header, got %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		connections.Add(1)

		for {
			var speak websocketMessage
			if err := conn.ReadJSON(&speak); err != nil {
				return
			}
			if speak.Type == "Close" {
				return
			}
			var flush websocketMessage
			if err := conn.ReadJSON(&flush); err != nil {
				return
			}
			if speak.Type != "Speak" || flush.Type != "Flush" {
				t.Errorf("expected Speak and Flush, got %q and %q", speak.Type, flush.Type)
				return
			}
			if !reply(conn, speak.Text) {
				return
			}
		}
	}))
	return server, &connections
}

func wsURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http")
}

func collect(t *testing.T, stream func(func([]byte, error) bool)) ([][]byte, error) {
	t.Helper()
	var chunks [][]byte
	for chunk, err := range stream {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func TestSynthesizeReadsUntilFlushedAndReusesConnection(t *testing.T) {
	server, connections := newSpeakStub(t, func(conn *websocket.Conn, text string) bool {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(text))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
		return true
	})
	defer server.Close()

	client := NewTextToSpeechClient("test-key", WithURL(wsURL(server.URL)))
	defer client.Close()

	for _, text := range []string{"Hello.", "How are you?"} {
		chunks, err := collect(t, client.Synthesize(context.Background(), text))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(chunks) != 2 || string(chunks[0]) != text {
			t.Fatalf("expected text echo and one more chunk, got %q", chunks)
		}
	}

	if got := connections.Load(); got != 1 {
		t.Fatalf("expected one connection, got %d", got)
	}
}

func TestSynthesizeReportsDeepgramErrors(t *testing.T) {
	server, _ := newSpeakStub(t, func(conn *websocket.Conn, text string) bool {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","err_code":"INVALID_INPUT","description":"text too long"}`))
		return true
	})
	defer server.Close()

	client := NewTextToSpeechClient("test-key", WithURL(wsURL(server.URL)))
	defer client.Close()

	_, err := collect(t, client.Synthesize(context.Background(), "Hello."))
	if err == nil || !strings.Contains(err.Error(), "text too long") {
		t.Fatalf("expected deepgram error, got %v", err)
	}
}

func TestSynthesizeCancellationDropsConnection(t *testing.T) {
	var replied atomic.Bool
	server, connections := newSpeakStub(t, func(conn *websocket.Conn, text string) bool {
		if replied.CompareAndSwap(false, true) {
			_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
			return true
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed"}`))
		return true
	})
	defer server.Close()

	client := NewTextToSpeechClient("test-key", WithURL(wsURL(server.URL)))
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var streamErr error
	for chunk, err := range client.Synthesize(ctx, "Hello.") {
		if err != nil {
			streamErr = err
			break
		}
		if len(chunk) > 0 {
			cancel()
		}
	}
	if !errors.Is(streamErr, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", streamErr)
	}

	// A new synthesis dials a fresh connection.
	if _, err := collect(t, client.Synthesize(context.Background(), "Again.")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := connections.Load(); got != 2 {
		t.Fatalf("expected two connections, got %d", got)
	}
}

func TestSynthesizeAfterClose(t *testing.T) {
	client := NewTextToSpeechClient("test-key")
	if err := client.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err := collect(t, client.Synthesize(context.Background(), "Hello."))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestConvertEncoding(t *testing.T) {
	testCases := []struct {
		name     string
		encoding audio.EncodingInfo
		want     string
		wantErr  bool
	}{
		{name: "linear16", encoding: audio.GetDefaultEncodingInfo(), want: "linear16"},
		{name: "mulaw", encoding: audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingMulaw}, want: "mulaw"},
		{name: "bad rate", encoding: audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingLinear16}, wantErr: true},
		{name: "unknown", encoding: audio.EncodingInfo{SampleRate: 16000, Format: "opus"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := convertEncoding(tc.encoding)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("expected %q, got %q (%v)", tc.want, got, err)
			}
		})
	}
}
