package orchestration

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/koscakluka/ema-dialogue/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const sessionEventQueueCapacity = 64

type (
	partialTranscriptInput struct{ text string }
	finalTranscriptInput   struct{ text string }
	audioStatusInput       struct{ playing bool }
	interruptInput         struct{}
	configureInput         struct{ config SessionConfig }
	clearHistoryInput      struct{}
)

type eventQueueItem struct {
	event    any
	queuedAt time.Time
}

// sessionRuntime is the single consumer loop of a session. Inputs are handled
// one at a time in arrival order.
type sessionRuntime struct {
	queue   chan eventQueueItem
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newSessionRuntime() *sessionRuntime {
	return &sessionRuntime{
		queue:   make(chan eventQueueItem, sessionEventQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (runtime *sessionRuntime) start(handle func(eventQueueItem)) (started bool) {
	if runtime.isClosed() {
		return false
	}

	runtime.startOnce.Do(func() {
		if runtime.isClosed() {
			return
		}

		started = true
		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			for {
				select {
				case <-runtime.closeCh:
					return
				case queuedEvent := <-runtime.queue:
					if runtime.isClosed() {
						return
					}
					handle(queuedEvent)
				}
			}
		}()
	})

	return started
}

func (runtime *sessionRuntime) end() {
	runtime.endOnce.Do(func() { close(runtime.closeCh) })
}

func (runtime *sessionRuntime) waitUntilEnded() {
	if runtime.started.Load() {
		<-runtime.done
	}
}

// enqueue blocks while the queue is full. It reports false once the runtime
// is closed.
func (runtime *sessionRuntime) enqueue(event any) bool {
	if runtime.isClosed() {
		return false
	}

	queueItem := eventQueueItem{event: event, queuedAt: time.Now()}
	select {
	case <-runtime.closeCh:
		return false
	case runtime.queue <- queueItem:
		return true
	}
}

func (runtime *sessionRuntime) isClosed() bool {
	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) enqueue(event any) {
	if !o.runtime.enqueue(event) {
		logger.Debug("dropping input, orchestrator closed", "session_id", o.id)
	}
}

func (o *Orchestrator) handleQueuedEvent(queuedEvent eventQueueItem) {
	ctx, span := tracer.Start(o.baseContext, "handle input")
	defer span.End()

	queuedTime := time.Since(queuedEvent.queuedAt).Seconds()
	span.SetAttributes(
		attribute.String("session.id", o.id),
		attribute.Float64("session.input_queued_time", queuedTime),
	)

	switch event := queuedEvent.event.(type) {
	case partialTranscriptInput:
		span.SetName("handle partial transcript")
		o.handlePartialTranscript(ctx, event.text)
	case finalTranscriptInput:
		span.SetName("handle final transcript")
		o.handleFinalTranscript(ctx, event.text)
	case audioStatusInput:
		o.state.SetAudioPlaying(event.playing)
	case interruptInput:
		span.SetName("handle interrupt")
		o.handleInterrupt(ctx)
	case configureInput:
		o.handleConfigure(event.config)
	case clearHistoryInput:
		o.state.ClearHistory()
		o.emitEvent(events.NewStatus(events.StatusHistoryCleared))
	}
}

func (o *Orchestrator) handlePartialTranscript(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if o.state.IsEcho(text) {
		o.dropEcho(ctx, text)
		return
	}

	flags := o.state.Flags()
	switch {
	case flags.IsInterrupted:
		o.state.UpdateFlags(func(f *conversations.Flags) { f.PendingInterruptText = ptr(text) })

	case flags.IsSpeaking || flags.IsAudioPlaying:
		logger.Info("barge-in detected", "session_id", o.id, "text", text)
		o.state.UpdateFlags(func(f *conversations.Flags) {
			f.IsInterrupted = true
			f.PendingInterruptText = ptr(text)
		})
		o.interruptActiveCycle(ctx, true)
		o.emitEvent(events.NewClearAudio())
	}

	o.emitEvent(events.NewPartialTranscript(text))
}

func (o *Orchestrator) handleFinalTranscript(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if o.state.IsEcho(text) {
		o.dropEcho(ctx, text)
		return
	}

	flags := o.state.Flags()
	switch {
	case flags.IsInterrupted:
		o.state.UpdateFlags(func(f *conversations.Flags) { f.IsInterrupted = false })
		o.emitEvent(events.NewUserTranscript(text))
		o.startCycle(text, o.interruptGracePeriod)

	case flags.IsSpeaking || flags.IsAudioPlaying:
		// The first final over speech only stops the response. The next final
		// confirms the user finished and starts the follow-up.
		logger.Info("interrupting response", "session_id", o.id, "text", text)
		o.state.UpdateFlags(func(f *conversations.Flags) {
			f.IsInterrupted = true
			f.PendingInterruptText = ptr(text)
			f.IsAudioPlaying = false
		})
		o.interruptActiveCycle(ctx, true)
		o.emitEvent(events.NewClearAudio())
		o.emitEvent(events.NewUserTranscript(text))
		o.emitEvent(events.NewStatus(events.StatusInterrupted))

	case flags.IsProcessing && !flags.IsSpeaking:
		o.state.QueueUserText(text)
		o.emitEvent(events.NewUserTranscript(text))

	default:
		o.emitEvent(events.NewUserTranscript(text))
		o.startCycle(text, 0)
	}
}

func (o *Orchestrator) handleInterrupt(ctx context.Context) {
	o.state.UpdateFlags(func(f *conversations.Flags) {
		f.IsInterrupted = true
		f.IsAudioPlaying = false
	})
	o.interruptActiveCycle(ctx, false)
	o.emitEvent(events.NewClearAudio())
}

func (o *Orchestrator) handleConfigure(config SessionConfig) {
	o.session.apply(config)
	if len(config.Tasks) > 0 {
		o.state.SetTasks(conversations.NewTasks(config.Tasks))
	}

	o.emitEvent(events.NewTasks(o.state.Tasks()))
	o.emitEvent(events.NewStatus(events.StatusConfigUpdated))
}

func (o *Orchestrator) dropEcho(ctx context.Context, text string) {
	echoCounter.Add(ctx, 1)
	trace.SpanFromContext(ctx).AddEvent("echo dropped")
	logger.Debug("ignoring echo", "session_id", o.id, "text", text)
}
