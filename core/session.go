package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/koscakluka/ema-dialogue/core/prompts"
	"github.com/koscakluka/ema-dialogue/core/retrieval"
)

// SessionConfig updates a running session. Zero fields leave the current
// value unchanged.
type SessionConfig struct {
	// Instructions replaces the base instructions.
	Instructions string `json:"system_prompt,omitempty" jsonschema:"description=Base instructions for the assistant"`
	// Tasks replaces the tracked tasks. Tasks without an ID are numbered by
	// position starting at 1.
	Tasks []conversations.Task `json:"tasks,omitempty" jsonschema:"description=Tasks the assistant should complete during the conversation"`
	// RetrievalKeywords replaces the retrieval keyword filter. An empty,
	// non-nil list checks every utterance.
	RetrievalKeywords []string `json:"retrieval_keywords,omitempty" jsonschema:"description=Keywords that make an utterance worth a retrieval check"`
}

type sessionSettings struct {
	mu sync.RWMutex

	instructions     string
	knowledgeSummary string
	trigger          *retrieval.Trigger
}

func (s *sessionSettings) apply(config SessionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if config.Instructions != "" {
		s.instructions = config.Instructions
	}
	if config.RetrievalKeywords != nil {
		s.trigger = retrieval.NewTrigger(config.RetrievalKeywords)
	}
}

func (s *sessionSettings) retrievalTrigger() *retrieval.Trigger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trigger
}

func (s *sessionSettings) instructionsFor(tasks []conversations.Task) (string, error) {
	s.mu.RLock()
	builder := prompts.Builder{
		Base:             s.instructions,
		KnowledgeSummary: s.knowledgeSummary,
		Tasks:            tasks,
	}
	s.mu.RUnlock()

	return builder.Build()
}
