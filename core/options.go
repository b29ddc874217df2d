package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/llms"
	"github.com/koscakluka/ema-dialogue/core/retrieval"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	"github.com/koscakluka/ema-dialogue/core/texttospeech"
)

const (
	DefaultInterruptGracePeriod = 50 * time.Millisecond
	DefaultRetrievalTimeout     = 3 * time.Second
	defaultCycleWaitTimeout     = 5 * time.Second
)

type OrchestratorOption func(*Orchestrator)

// Generator streams a response for the conversation so far.
type Generator interface {
	Generate(ctx context.Context, history []llms.Message, instructions string) llms.TokenStream
}

func WithGenerator(generator Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.generator = generator }
}

// Classifier answers a single prompt without streaming. It decides whether a
// turn needs retrieval.
type Classifier interface {
	Classify(ctx context.Context, text string, instructions string) (string, error)
}

func WithClassifier(classifier Classifier) OrchestratorOption {
	return func(o *Orchestrator) { o.classifier = classifier }
}

// Synthesizer turns one sentence into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) texttospeech.AudioStream
}

// WithSynthesizer sets the speech synthesizer. Without one the orchestrator
// still generates and reports responses but produces no audio.
func WithSynthesizer(synthesizer Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = synthesizer }
}

type Retriever interface {
	Search(ctx context.Context, query string) ([]retrieval.Reference, error)
}

// WithRetriever enables retrieval. Retrieval also needs a classifier; without
// one every turn goes straight to generation.
func WithRetriever(retriever Retriever) OrchestratorOption {
	return func(o *Orchestrator) { o.retriever = retriever }
}

type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

// WithSpeechToTextClient connects a transcription client. Its interim and
// final transcripts are fed into the orchestrator as if they were passed to
// [Orchestrator.HandlePartialTranscript] and
// [Orchestrator.HandleFinalTranscript].
func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText.set(client) }
}

func WithInputEncoding(encodingInfo audio.EncodingInfo) OrchestratorOption {
	return func(o *Orchestrator) {
		if !encodingInfo.IsZero() {
			o.inputEncoding = encodingInfo
		}
	}
}

func WithInstructions(instructions string) OrchestratorOption {
	return func(o *Orchestrator) { o.session.instructions = instructions }
}

// WithKnowledgeSummary adds an overview of the retrievable knowledge to the
// instructions.
func WithKnowledgeSummary(summary string) OrchestratorOption {
	return func(o *Orchestrator) { o.session.knowledgeSummary = summary }
}

// WithTasks sets the tasks tracked for the conversation. Tasks without an ID
// are numbered by position starting at 1.
func WithTasks(tasks ...conversations.Task) OrchestratorOption {
	return func(o *Orchestrator) { o.state.SetTasks(conversations.NewTasks(tasks)) }
}

// WithRetrievalKeywords limits retrieval checks to utterances that contain
// one of the keywords. Without keywords every utterance is checked.
func WithRetrievalKeywords(keywords ...string) OrchestratorOption {
	return func(o *Orchestrator) { o.session.trigger = retrieval.NewTrigger(keywords) }
}

// WithInterruptGracePeriod sets how long to wait after a barge-in is
// confirmed before the follow-up response starts.
func WithInterruptGracePeriod(gracePeriod time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if gracePeriod >= 0 {
			o.interruptGracePeriod = gracePeriod
		}
	}
}

// WithRetrievalTimeout bounds the classifier call and the retrieval query
// separately. A call that runs out of time counts as "no retrieval".
func WithRetrievalTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.retrievalTimeout = timeout
		}
	}
}

type OrchestrateOptions struct {
	onEvent                func(event events.Event)
	onTranscription        func(transcript string)
	onInterimTranscription func(transcript string)
	onStatus               func(status events.StatusValue)
	onResponse             func(response string)
	onResponseEnd          func(response string)
	onAudio                func(audio []byte)
	onAudioEnded           func()
	onClearAudio           func()
	onTaskUpdate           func(task conversations.Task)
	onError                func(err error)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithEventCallback registers a callback that receives every observation.
//
// Callbacks are never invoked concurrently and run on the goroutine that
// produced the observation, so they should not block.
func WithEventCallback(callback func(event events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onEvent = callback
	}
}

// WithTranscriptionCallback registers a callback for final user transcripts
// that were not dropped as echo.
func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscription = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInterimTranscription = callback
	}
}

func WithStatusCallback(callback func(status events.StatusValue)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onStatus = callback
	}
}

// WithResponseCallback registers a callback for the response text generated
// so far. Every call carries the whole text, not a delta.
func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponse = callback
	}
}

// WithResponseEndCallback registers a callback for the final response text as
// it is stored in the conversation history.
func WithResponseEndCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponseEnd = callback
	}
}

func WithAudioCallback(callback func(audio []byte)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudio = callback
	}
}

func WithAudioEndedCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudioEnded = callback
	}
}

// WithClearAudioCallback registers a callback for barge-ins. The playback
// sink should drop any audio it still has queued.
func WithClearAudioCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onClearAudio = callback
	}
}

func WithTaskUpdateCallback(callback func(task conversations.Task)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTaskUpdate = callback
	}
}

func WithErrorCallback(callback func(err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onError = callback
	}
}
