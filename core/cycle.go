package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/llms"
	"github.com/koscakluka/ema-dialogue/core/responses"
	"github.com/koscakluka/ema-dialogue/core/retrieval"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const interruptedSuffix = " [interrupted]"

// cycle is one run of the processing loop: a user message, the generated
// response and its audio, plus any follow-ups queued while it was thinking.
type cycle struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// interrupted is set before ctx is cancelled by a barge-in so that the
	// cycle can tell an interruption from a shutdown.
	interrupted atomic.Bool
	// awaitingFollowUp means the user's interrupting utterance will start
	// the next cycle.
	awaitingFollowUp atomic.Bool
}

func newCycle(parent context.Context) *cycle {
	ctx, cancel := context.WithCancel(parent)
	return &cycle{
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (c *cycle) interrupt(awaitFollowUp bool) {
	if awaitFollowUp {
		c.awaitingFollowUp.Store(true)
	}
	c.interrupted.Store(true)
	c.cancel()
}

// wait reports false if the cycle is still running after timeout.
func (c *cycle) wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return true
	case <-timer.C:
		return false
	}
}

func (o *Orchestrator) interruptActiveCycle(ctx context.Context, awaitFollowUp bool) {
	o.cycleMu.Lock()
	active := o.activeCycle
	o.cycleMu.Unlock()

	interruptionCounter.Add(ctx, 1)
	if active == nil {
		return
	}

	trace.SpanFromContext(ctx).AddEvent("cancel processing cycle",
		trace.WithAttributes(attribute.String("cycle.id", active.id)))
	active.interrupt(awaitFollowUp)
}

func (o *Orchestrator) isInterrupted(c *cycle) bool {
	return c.interrupted.Load() || o.state.Flags().IsInterrupted
}

// startCycle runs on the event loop. It returns once the new cycle is
// running, so inputs that arrive afterwards see it as active.
func (o *Orchestrator) startCycle(text string, delay time.Duration) {
	if !sleepOrDone(delay, o.runtime.closeCh) {
		return
	}

	o.cycleMu.Lock()
	previous := o.activeCycle
	o.cycleMu.Unlock()
	if previous != nil && !previous.wait(o.cycleWaitTimeout) {
		log.Printf("Warning: processing cycle %s still running, starting the next one anyway", previous.id)
	}

	o.cycleMu.Lock()
	if o.runtime.isClosed() {
		o.cycleMu.Unlock()
		return
	}
	c := newCycle(o.baseContext)
	o.state.BeginProcessing()
	o.activeCycle = c
	o.cycleMu.Unlock()

	go func() {
		defer close(c.done)
		defer c.cancel()

		run := panicSafeNamedWorker("processing cycle", func(context.Context) error {
			o.runCycle(c, text)
			return nil
		})
		if err := run(c.ctx); err != nil {
			log.Printf("Error: %v", err)
			o.emitEvent(events.NewError(err))
			o.resetProcessing(c)
		}
	}()
}

func (o *Orchestrator) runCycle(c *cycle, text string) {
	for {
		next, ok := o.processTurn(c, text)
		if !ok {
			return
		}
		text = next
	}
}

// processTurn handles a single user message. It reports the queued user text
// to continue with, if any.
func (o *Orchestrator) processTurn(c *cycle, text string) (string, bool) {
	ctx, span := tracer.Start(c.ctx, "process turn",
		trace.WithAttributes(attribute.String("session.id", o.id), attribute.String("cycle.id", c.id)))
	defer span.End()
	turnCounter.Add(ctx, 1)

	message := o.buildUserMessage(ctx, text)
	o.state.AppendMessage(llms.NewUserMessage(message))
	o.emitEvent(events.NewStatus(events.StatusThinking))

	err := o.respond(ctx, c)
	switch {
	case errors.Is(err, errCycleCancelled):
		o.resetProcessing(c)
		return "", false
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to respond", "session_id", o.id, "error", err)
		o.emitEvent(events.NewError(err))
	case c.awaitingFollowUp.Load():
		o.resetProcessing(c)
		return "", false
	}

	if flags := o.state.Flags(); flags.IsInterrupted && flags.PendingInterruptText != nil {
		o.resetProcessing(c)
		return "", false
	}

	if !o.isInterrupted(c) {
		if next, ok := o.state.ContinueWithPendingUserText(); ok {
			span.AddEvent("continue with queued user text")
			return next, true
		}
	}

	if o.resetProcessing(c) {
		o.emitEvent(events.NewStatus(events.StatusListening))
	}
	return "", false
}

// resetProcessing returns to listening unless a newer cycle already took
// over. It reports whether c was still the active cycle.
func (o *Orchestrator) resetProcessing(c *cycle) bool {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	if o.activeCycle != c {
		return false
	}
	o.state.ResetProcessing()
	o.activeCycle = nil
	return true
}

// buildUserMessage folds retrieved references into text when the classifier
// asks for a search. Any failure falls back to the plain text.
func (o *Orchestrator) buildUserMessage(ctx context.Context, text string) string {
	if o.retriever == nil || o.classifier == nil {
		return text
	}
	if !o.session.retrievalTrigger().ShouldPreCheck(text) {
		return text
	}

	ctx, span := tracer.Start(ctx, "retrieve references")
	defer span.End()

	classifyCtx, cancelClassify := context.WithTimeout(ctx, o.retrievalTimeout)
	output, err := o.classifier.Classify(classifyCtx, text, retrieval.ClassificationInstructions)
	cancelClassify()
	if err != nil {
		span.RecordError(err)
		logger.Warn("retrieval classification failed", "session_id", o.id, "error", err)
		return text
	}

	shouldSearch, query := retrieval.ParseClassifierOutput(output)
	if !shouldSearch {
		return text
	}
	if query == "" {
		query = text
	}
	span.SetAttributes(attribute.String("retrieval.query", query))

	searchCtx, cancelSearch := context.WithTimeout(ctx, o.retrievalTimeout)
	refs, err := o.retriever.Search(searchCtx, query)
	cancelSearch()
	if err != nil {
		span.RecordError(err)
		logger.Warn("retrieval failed", "session_id", o.id, "query", query, "error", err)
		return text
	}
	if len(refs) == 0 {
		return text
	}

	span.SetAttributes(attribute.Int("retrieval.results", len(refs)))
	retrievalCounter.Add(ctx, 1)
	o.emitEvent(events.NewRetrievalResults(query, retrieval.Snippets(refs)))
	return retrieval.FoldContext(text, refs)
}

func (o *Orchestrator) respond(ctx context.Context, c *cycle) error {
	if o.generator == nil {
		return ErrGeneratorNotConfigured
	}

	instructions, err := o.session.instructionsFor(o.state.Tasks())
	if err != nil {
		return fmt.Errorf("failed to build instructions: %w", err)
	}

	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	var response, buffer strings.Builder
	speaking := false
	startSpeaking := func() {
		if speaking {
			return
		}
		speaking = true
		o.state.UpdateFlags(func(f *conversations.Flags) { f.IsSpeaking = true })
		o.state.ClearSpeech()
		o.emitEvent(events.NewStatus(events.StatusSpeaking))
	}

	for token, err := range o.generator.Generate(ctx, o.state.History(), instructions) {
		if o.isInterrupted(c) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("failed to generate response: %w", err)
		}
		if token == "" {
			continue
		}

		response.WriteString(token)
		buffer.WriteString(token)
		o.emitEvent(events.NewPartialResponse(responses.StripTaskMarkers(response.String())))

		complete, remainder := responses.ExtractCompleteSentences(buffer.String())
		if !responses.IsSpeakable(complete) {
			continue
		}
		buffer.Reset()
		buffer.WriteString(remainder)

		startSpeaking()
		if err := o.speak(ctx, c, complete); err != nil {
			return err
		}
		if o.isInterrupted(c) || ctx.Err() != nil {
			break
		}
	}

	interrupted := o.isInterrupted(c)
	if !interrupted && ctx.Err() != nil {
		return errCycleCancelled
	}

	if tail := buffer.String(); !interrupted && strings.TrimSpace(tail) != "" {
		startSpeaking()
		if err := o.speak(ctx, c, strings.TrimSpace(tail)); err != nil {
			return err
		}
		interrupted = o.isInterrupted(c)
	}

	if response.Len() > 0 {
		o.finalizeResponse(response.String(), interrupted)
	}
	o.emitEvent(events.NewAudioDone())

	span.SetAttributes(attribute.Bool("response.interrupted", interrupted))
	return nil
}

// speak applies the task markers of one sentence and streams its audio.
func (o *Orchestrator) speak(ctx context.Context, c *cycle, sentence string) error {
	o.completeTasks(sentence)

	speakable := strings.TrimSpace(responses.StripTaskMarkers(sentence))
	if speakable == "" {
		return nil
	}
	o.state.RecordSpeech(speakable)

	if o.synthesizer == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "synthesize sentence")
	defer span.End()

	for chunk, err := range o.synthesizer.Synthesize(ctx, speakable) {
		if o.isInterrupted(c) || o.runtime.isClosed() {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			recordedErr := fmt.Errorf("failed to synthesize speech: %w", err)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
			return recordedErr
		}
		if len(chunk) > 0 {
			o.emitEvent(events.NewAudio(chunk))
		}
	}

	return nil
}

func (o *Orchestrator) completeTasks(text string) {
	for _, id := range responses.ExtractTaskCompletions(text) {
		task, ok := o.state.CompleteTask(id)
		if !ok {
			continue
		}
		logger.Info("task completed", "session_id", o.id, "task_id", task.ID, "task", task.Description)
		o.emitEvent(events.NewTaskUpdate(task))
	}
}

func (o *Orchestrator) finalizeResponse(response string, interrupted bool) {
	o.completeTasks(response)

	text := strings.TrimSpace(responses.StripTaskMarkers(response))
	if interrupted {
		text += interruptedSuffix
	}

	o.state.AppendMessage(llms.NewAssistantMessage(text))
	o.emitEvent(events.NewAgentResponse(text, interrupted))
}
