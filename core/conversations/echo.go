package conversations

import "strings"

// DefaultEchoWindow is the number of recently spoken sentences kept for echo
// detection.
const DefaultEchoWindow = 3

// EchoGuard remembers the last few sentences the assistant spoke so that the
// transcription of its own voice, picked up by the microphone, can be told
// apart from a new user utterance.
//
// Matching is intentionally coarse: an incoming fragment is an echo if it is
// contained in a recent sentence or if a recent sentence starts with it. Very
// short fragments can therefore match unrelated speech.
//
// EchoGuard is not safe for concurrent use; [State] guards its own instance.
type EchoGuard struct {
	capacity  int
	sentences []string
}

func NewEchoGuard(capacity int) *EchoGuard {
	if capacity <= 0 {
		capacity = DefaultEchoWindow
	}
	return &EchoGuard{capacity: capacity}
}

// Record appends a spoken sentence, evicting the oldest one when the window
// is full.
func (g *EchoGuard) Record(sentence string) {
	g.sentences = append(g.sentences, sentence)
	if len(g.sentences) > g.capacity {
		g.sentences = g.sentences[len(g.sentences)-g.capacity:]
	}
}

func (g *EchoGuard) IsEcho(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, sentence := range g.sentences {
		sentence = strings.ToLower(sentence)
		if strings.Contains(sentence, text) || strings.HasPrefix(sentence, text) {
			return true
		}
	}
	return false
}

func (g *EchoGuard) Clear() {
	g.sentences = nil
}

// Sentences returns a copy of the current window, oldest first.
func (g *EchoGuard) Sentences() []string {
	sentences := make([]string, len(g.sentences))
	copy(sentences, g.sentences)
	return sentences
}
