package conversations

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-dialogue/core/llms"
)

// Flags is the mutable part of the session state the orchestrator derives its
// conceptual state from:
//
//   - Listening: not processing and not speaking
//   - Processing: generating text, nothing spoken yet
//   - Speaking: audio is being produced or played
//   - Interrupted: the user spoke over the assistant and the interruption is
//     not resolved yet
type Flags struct {
	IsProcessing   bool
	IsSpeaking     bool
	IsInterrupted  bool
	IsAudioPlaying bool

	// PendingInterruptText is the latest user text heard during an
	// interruption. It is only set while IsInterrupted is true.
	PendingInterruptText *string
	// PendingUserText accumulates finals heard while the model was thinking
	// but had not started speaking yet.
	PendingUserText *string
}

// Snapshot is a point-in-time copy of a [State].
type Snapshot struct {
	Flags

	History      []llms.Message
	Tasks        []Task
	RecentSpeech []string
}

// State is the per-session conversation state: message history, tracked
// tasks, processing flags and the echo window.
//
// The orchestrator's event loop and its processing cycle run on different
// goroutines, so every method takes the state lock.
type State struct {
	mu sync.RWMutex

	flags   Flags
	history []llms.Message
	tasks   []Task
	echo    *EchoGuard
}

func NewState() *State {
	return &State{echo: NewEchoGuard(DefaultEchoWindow)}
}

func (s *State) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// UpdateFlags runs update under the state lock so that reading and changing
// the flags is a single step. Clearing IsInterrupted also clears the pending
// interrupt text.
func (s *State) UpdateFlags(update func(*Flags)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	update(&s.flags)
	if !s.flags.IsInterrupted {
		s.flags.PendingInterruptText = nil
	}
}

// BeginProcessing enters a processing cycle: processing, not interrupted, no
// queued user text.
func (s *State) BeginProcessing() {
	s.UpdateFlags(func(f *Flags) {
		f.IsProcessing = true
		f.IsInterrupted = false
		f.PendingUserText = nil
	})
}

// ResetProcessing returns to the listening baseline at the end of a completed
// or cancelled cycle. The interrupted flag is left alone; it is resolved by
// the next final transcript.
func (s *State) ResetProcessing() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags.IsProcessing = false
	s.flags.IsSpeaking = false
	s.flags.IsAudioPlaying = false
	s.echo.Clear()
}

func (s *State) SetAudioPlaying(isPlaying bool) {
	s.UpdateFlags(func(f *Flags) { f.IsAudioPlaying = isPlaying })
}

// QueueUserText appends text to the pending user text, space separated.
func (s *State) QueueUserText(text string) {
	s.UpdateFlags(func(f *Flags) {
		if f.PendingUserText != nil && *f.PendingUserText != "" {
			joined := *f.PendingUserText + " " + text
			f.PendingUserText = &joined
			return
		}
		f.PendingUserText = &text
	})
}

// ContinueWithPendingUserText takes the queued user text and starts the next
// processing round with it in one step: speaking, audio playback and the echo
// window are reset while processing stays on. It reports false, and changes
// nothing, when there is no queued text or the session is interrupted.
func (s *State) ContinueWithPendingUserText() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flags.IsInterrupted || s.flags.PendingUserText == nil || strings.TrimSpace(*s.flags.PendingUserText) == "" {
		return "", false
	}

	text := *s.flags.PendingUserText
	s.flags.PendingUserText = nil
	s.flags.IsProcessing = true
	s.flags.IsSpeaking = false
	s.flags.IsAudioPlaying = false
	s.echo.Clear()
	return text, true
}

func (s *State) AppendMessage(message llms.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, message)
}

func (s *State) History() []llms.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]llms.Message, len(s.history))
	copy(history, s.history)
	return history
}

func (s *State) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

func (s *State) SetTasks(tasks []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make([]Task, len(tasks))
	copy(s.tasks, tasks)
}

func (s *State) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, len(s.tasks))
	copy(tasks, s.tasks)
	return tasks
}

// CompleteTask marks the task with the given id as completed. It reports
// false for unknown ids and for tasks that were already completed.
func (s *State) CompleteTask(id int) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id && !s.tasks[i].Completed {
			s.tasks[i].Completed = true
			return s.tasks[i], true
		}
	}
	return Task{}, false
}

func (s *State) RecordSpeech(sentence string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echo.Record(sentence)
}

func (s *State) ClearSpeech() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echo.Clear()
}

func (s *State) IsEcho(text string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.echo.IsEcho(text)
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source := Snapshot{
		Flags:        s.flags,
		History:      s.history,
		Tasks:        s.tasks,
		RecentSpeech: s.echo.Sentences(),
	}

	var snapshot Snapshot
	if err := copier.CopyWithOption(&snapshot, &source, copier.Option{DeepCopy: true}); err != nil {
		return Snapshot{}, fmt.Errorf("failed to copy conversation state: %w", err)
	}
	return snapshot, nil
}
