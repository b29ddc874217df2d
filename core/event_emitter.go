package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-dialogue/core/events"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newSerializedEventEmitter makes sure emit never runs concurrently. The
// event loop and the processing cycle both emit.
func newSerializedEventEmitter(emit eventEmitter) eventEmitter {
	if emit == nil {
		return noopEventEmitter
	}

	mu := &sync.Mutex{}
	return func(event events.Event) {
		mu.Lock()
		defer mu.Unlock()
		emit(event)
	}
}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.UserTranscript:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Text)
			}
		case events.PartialTranscript:
			if opts.onInterimTranscription != nil {
				opts.onInterimTranscription(typedEvent.Text)
			}
		case events.Status:
			if opts.onStatus != nil {
				opts.onStatus(typedEvent.Value)
			}
		case events.PartialResponse:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Text)
			}
		case events.AgentResponse:
			if opts.onResponseEnd != nil {
				opts.onResponseEnd(typedEvent.Text)
			}
		case events.Audio:
			if opts.onAudio != nil {
				opts.onAudio(typedEvent.Chunk)
			}
		case events.AudioDone:
			if opts.onAudioEnded != nil {
				opts.onAudioEnded()
			}
		case events.ClearAudio:
			if opts.onClearAudio != nil {
				opts.onClearAudio()
			}
		case events.TaskUpdate:
			if opts.onTaskUpdate != nil {
				opts.onTaskUpdate(typedEvent.Task)
			}
		case events.Error:
			if opts.onError != nil {
				opts.onError(typedEvent.Err)
			}
		}
	}
}
