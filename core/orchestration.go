package orchestration

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/koscakluka/ema-dialogue/core/events"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator runs one spoken conversation. It turns transcripts into
// responses, streams the responses sentence by sentence to the synthesizer
// and stops speaking as soon as the user talks over it.
type Orchestrator struct {
	id string

	state   *conversations.State
	session sessionSettings

	generator    Generator
	classifier   Classifier
	synthesizer  Synthesizer
	retriever    Retriever
	speechToText speechToText

	inputEncoding        audio.EncodingInfo
	interruptGracePeriod time.Duration
	retrievalTimeout     time.Duration
	cycleWaitTimeout     time.Duration

	runtime   *sessionRuntime
	emitEvent eventEmitter

	cycleMu     sync.Mutex
	activeCycle *cycle

	closeOnce       sync.Once
	baseContext     context.Context
	stopCancelHook  chan struct{}
	orchestrateOnce sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		id:                   uuid.NewString(),
		state:                conversations.NewState(),
		inputEncoding:        audio.GetDefaultEncodingInfo(),
		interruptGracePeriod: DefaultInterruptGracePeriod,
		retrievalTimeout:     DefaultRetrievalTimeout,
		cycleWaitTimeout:     defaultCycleWaitTimeout,
		runtime:              newSessionRuntime(),
		emitEvent:            noopEventEmitter,
		baseContext:          context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Orchestrate starts processing inputs. ctx is the base context for every
// collaborator call; cancelling it closes the orchestrator.
//
// Only the first call has an effect.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	if o.runtime.isClosed() {
		log.Println("Warning: orchestrator already closed, skipping Orchestrate")
		return
	}

	o.orchestrateOnce.Do(func() {
		orchestrateOptions := OrchestrateOptions{}
		for _, opt := range opts {
			opt(&orchestrateOptions)
		}

		o.baseContext = ctx
		o.emitEvent = newSerializedEventEmitter(newCallbackEventEmitter(orchestrateOptions))

		o.emitEvent(events.NewStatus(events.StatusListening))
		if started := o.runtime.start(o.handleQueuedEvent); started {
			o.stopCancelHook = withContextCancelHook(ctx, o.Close)
		}

		if err := o.speechToText.start(
			ctx,
			speechToTextCallbacks{
				onInterimTranscription: o.HandlePartialTranscript,
				onTranscription:        o.HandleFinalTranscript,
				onError:                func(err error) { o.emitEvent(events.NewError(err)) },
			},
			o.inputEncoding,
		); err != nil {
			recordedErr := fmt.Errorf("failed to initialize speech-to-text: %w", err)
			span := trace.SpanFromContext(ctx)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
			o.emitEvent(events.NewError(recordedErr))
		}
	})
}

// Close stops the session and waits for the active response to stop. It is
// safe to call more than once, but not from an observation callback.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.runtime.end()

		o.cycleMu.Lock()
		active := o.activeCycle
		if active != nil {
			active.cancel()
		}
		o.cycleMu.Unlock()

		if err := o.speechToText.Close(o.baseContext); err != nil {
			span := trace.SpanFromContext(o.baseContext)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		o.runtime.waitUntilEnded()
		if active != nil && !active.wait(o.cycleWaitTimeout) {
			log.Printf("Warning: processing cycle %s did not stop within %s", active.id, o.cycleWaitTimeout)
		}

		if o.stopCancelHook != nil {
			close(o.stopCancelHook)
		}
	})
}

func (o *Orchestrator) ID() string { return o.id }

// HandlePartialTranscript feeds an interim transcript of the user's speech.
func (o *Orchestrator) HandlePartialTranscript(text string) {
	o.enqueue(partialTranscriptInput{text: text})
}

// HandleFinalTranscript feeds a finished user utterance.
func (o *Orchestrator) HandleFinalTranscript(text string) {
	o.enqueue(finalTranscriptInput{text: text})
}

// SetAudioPlaying reports whether the playback sink is still playing
// assistant audio. While it is, user speech counts as a barge-in.
func (o *Orchestrator) SetAudioPlaying(isPlaying bool) {
	o.enqueue(audioStatusInput{playing: isPlaying})
}

// Interrupt stops the current response right away, for clients that detect
// user speech on their own.
func (o *Orchestrator) Interrupt() { o.enqueue(interruptInput{}) }

func (o *Orchestrator) Configure(config SessionConfig) {
	o.enqueue(configureInput{config: config})
}

func (o *Orchestrator) ClearHistory() { o.enqueue(clearHistoryInput{}) }

// SendAudio forwards user audio to the speech-to-text client.
func (o *Orchestrator) SendAudio(audio []byte) error {
	if o.runtime.isClosed() {
		return ErrClosed
	}
	return o.speechToText.SendAudio(audio)
}

// Commit asks the speech-to-text client to finalize the current utterance.
func (o *Orchestrator) Commit() error {
	if o.runtime.isClosed() {
		return ErrClosed
	}
	return o.speechToText.Commit()
}

// Snapshot returns a copy of the conversation state.
func (o *Orchestrator) Snapshot() (conversations.Snapshot, error) {
	return o.state.Snapshot()
}

func (o *Orchestrator) Tasks() []conversations.Task { return o.state.Tasks() }
