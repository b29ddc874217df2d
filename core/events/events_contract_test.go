package events

import (
	"errors"
	"testing"

	"github.com/koscakluka/ema-dialogue/core/conversations"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "partial transcript", event: NewPartialTranscript("hel"), expected: "partial_transcript"},
		{name: "user transcript", event: NewUserTranscript("hello"), expected: "user_transcript"},
		{name: "status", event: NewStatus(StatusListening), expected: "status"},
		{name: "partial response", event: NewPartialResponse("Hi"), expected: "partial_response"},
		{name: "agent response", event: NewAgentResponse("Hi there.", false), expected: "agent_response"},
		{name: "audio", event: NewAudio([]byte{1}), expected: "audio"},
		{name: "audio done", event: NewAudioDone(), expected: "audio_done"},
		{name: "clear audio", event: NewClearAudio(), expected: "clear_audio"},
		{name: "task update", event: NewTaskUpdate(conversations.Task{ID: 1}), expected: "task_update"},
		{name: "tasks", event: NewTasks(nil), expected: "tasks"},
		{name: "retrieval results", event: NewRetrievalResults("plans", nil), expected: "rag_results"},
		{name: "error", event: NewError(errors.New("boom")), expected: "error"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	if got := NewError(errors.New("boom")).Message(); got != "boom" {
		t.Fatalf("expected message %q, got %q", "boom", got)
	}
	if got := NewError(nil).Message(); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}
