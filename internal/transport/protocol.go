package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	orchestration "github.com/koscakluka/ema-dialogue/core"
	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/retrieval"
)

// Message types sent by the browser.
const (
	TypeAudio        = "audio"
	TypeCommit       = "commit"
	TypeUserSpeaking = "user_speaking"
	TypeAudioStatus  = "audio_status"
	TypeConfig       = "config"
	TypeClearHistory = "clear_history"
)

// TypeVADConfig is sent once after connecting so the browser can tune its
// voice activity detection.
const TypeVADConfig = "vad_config"

// ClientMessage is a message from the browser. Only the fields that belong
// to Type are set.
type ClientMessage struct {
	Type string `json:"type" jsonschema:"enum=audio,enum=commit,enum=user_speaking,enum=audio_status,enum=config,enum=clear_history"`

	// Audio is base64 encoded 16 kHz mono PCM for "audio".
	Audio string `json:"audio,omitempty"`
	// Interrupted is set on "user_speaking" when the user talked over the
	// assistant's playback.
	Interrupted bool `json:"interrupted,omitempty"`
	// Playing reports playback state for "audio_status".
	Playing bool `json:"playing,omitempty"`

	SystemPrompt      string               `json:"system_prompt,omitempty"`
	Tasks             []conversations.Task `json:"tasks,omitempty"`
	RetrievalKeywords []string             `json:"retrieval_keywords,omitempty"`
}

func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid client message: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, fmt.Errorf("client message without type")
	}
	return msg, nil
}

func (m ClientMessage) AudioBytes() ([]byte, error) {
	audio, err := base64.StdEncoding.DecodeString(m.Audio)
	if err != nil {
		return nil, fmt.Errorf("invalid audio payload: %w", err)
	}
	return audio, nil
}

func (m ClientMessage) SessionConfig() orchestration.SessionConfig {
	return orchestration.SessionConfig{
		Instructions:      m.SystemPrompt,
		Tasks:             m.Tasks,
		RetrievalKeywords: m.RetrievalKeywords,
	}
}

// Envelope is a message to the browser. Audio chunks travel in Audio, every
// other payload in Data.
type Envelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Audio string `json:"audio,omitempty"`
}

type RetrievalData struct {
	Query   string              `json:"query"`
	Results []retrieval.Snippet `json:"results"`
}

// EnvelopeFor renders an observation for the browser. It reports false for
// observations the browser does not need.
func EnvelopeFor(event events.Event) (Envelope, bool) {
	envelope := Envelope{Type: string(event.Kind())}

	switch e := event.(type) {
	case events.Audio:
		if len(e.Chunk) == 0 {
			return Envelope{}, false
		}
		envelope.Audio = base64.StdEncoding.EncodeToString(e.Chunk)
	case events.AudioDone, events.ClearAudio:
		envelope.Data = true
	case events.Status:
		envelope.Data = e.Value
	case events.PartialTranscript:
		envelope.Data = e.Text
	case events.UserTranscript:
		envelope.Data = e.Text
	case events.PartialResponse:
		envelope.Data = e.Text
	case events.AgentResponse:
		envelope.Data = e.Text
	case events.TaskUpdate:
		envelope.Data = e.Task
	case events.Tasks:
		envelope.Data = e.Tasks
	case events.RetrievalResults:
		envelope.Data = RetrievalData{Query: e.Query, Results: e.Results}
	case events.Error:
		envelope.Data = e.Message()
	default:
		return Envelope{}, false
	}

	return envelope, true
}
