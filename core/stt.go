package orchestration

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
)

type speechToTextCallbacks struct {
	onInterimTranscription func(transcript string)
	onTranscription        func(transcript string)
	onError                func(err error)
}

type speechToText struct {
	// client stores the configured speech-to-text implementation.
	client SpeechToText
}

func (s *speechToText) set(client SpeechToText) {
	if s != nil {
		s.client = client
	}
}

func (s *speechToText) start(ctx context.Context, callbacks speechToTextCallbacks, encodingInfo audio.EncodingInfo) error {
	if !s.isConfigured() {
		return nil
	}

	sttOptions := []speechtotext.TranscriptionOption{
		speechtotext.WithInterimTranscriptionCallback(callbacks.onInterimTranscription),
		speechtotext.WithTranscriptionCallback(callbacks.onTranscription),
		speechtotext.WithErrorCallback(callbacks.onError),
		speechtotext.WithEncodingInfo(encodingInfo),
	}

	if err := s.client.Transcribe(ctx, sttOptions...); err != nil {
		return fmt.Errorf("failed to start transcribing: %w", err)
	}

	return nil
}

func (s *speechToText) SendAudio(audio []byte) error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.SendAudio(audio)
}

// Commit asks the client to finish the current utterance. Clients that detect
// the end of speech on their own may not support it.
func (s *speechToText) Commit() error {
	if !s.isConfigured() {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ Commit() error }:
		if err := c.Commit(); err != nil {
			return fmt.Errorf("failed to commit transcription: %w", err)
		}
	case interface{ Commit() }:
		c.Commit()
	}

	return nil
}

func (s *speechToText) Close(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close(context.Context) }:
		c.Close(ctx)
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}
