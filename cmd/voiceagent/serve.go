package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	orchestration "github.com/koscakluka/ema-dialogue/core"
	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/llms/anthropic"
	"github.com/koscakluka/ema-dialogue/core/llms/groq"
	"github.com/koscakluka/ema-dialogue/core/retrieval/knowledgebase"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	sttdeepgram "github.com/koscakluka/ema-dialogue/core/speechtotext/deepgram"
	sttelevenlabs "github.com/koscakluka/ema-dialogue/core/speechtotext/elevenlabs"
	"github.com/koscakluka/ema-dialogue/core/texttospeech"
	ttsdeepgram "github.com/koscakluka/ema-dialogue/core/texttospeech/deepgram"
	ttselevenlabs "github.com/koscakluka/ema-dialogue/core/texttospeech/elevenlabs"
	"github.com/koscakluka/ema-dialogue/internal/config"
	"github.com/koscakluka/ema-dialogue/internal/transport"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(c *cli) *cobra.Command {
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve voice sessions over a browser websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.settings.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			agent, err := newAgent(ctx, c.settings)
			if err != nil {
				return err
			}
			return serve(ctx, c.settings, newRouter(agent, c.settings, staticDir))
		},
	}
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "directory with the browser client, served at /")
	return cmd
}

// agent holds what sessions share: the language model client, the knowledge
// base and the base instructions.
type agent struct {
	settings     config.Settings
	instructions string
	llm          interface {
		orchestration.Generator
		orchestration.Classifier
	}
	knowledge *knowledgebase.KnowledgeBase
}

func newAgent(ctx context.Context, settings config.Settings) (*agent, error) {
	a := &agent{settings: settings}

	if path := settings.Agent.SystemPromptFile; path != "" {
		instructions, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read system prompt: %w", err)
		}
		a.instructions = strings.TrimSpace(string(instructions))
	}

	switch settings.LLM.Provider {
	case config.ProviderGroq:
		a.llm = groq.NewClient(settings.Keys.Groq,
			groq.WithModel(settings.LLM.Model),
			groq.WithClassifierModel(settings.LLM.ClassifierModel),
			groq.WithTemperature(settings.LLM.Temperature),
			groq.WithMaxTokens(settings.LLM.MaxTokens),
		)
	default:
		a.llm = anthropic.NewClient(settings.Keys.Anthropic,
			anthropic.WithModel(settings.LLM.Model),
			anthropic.WithClassifierModel(settings.LLM.ClassifierModel),
			anthropic.WithTemperature(settings.LLM.Temperature),
			anthropic.WithMaxTokens(settings.LLM.MaxTokens),
		)
	}

	knowledge, err := loadKnowledgeBase(ctx, settings)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Warning: knowledge document %s not found, retrieval disabled", settings.RAG.DocumentsPath)
	case err != nil:
		return nil, err
	default:
		a.knowledge = knowledge
		log.Printf("Knowledge base ready with %d sections", knowledge.Count())
	}

	return a, nil
}

func loadKnowledgeBase(ctx context.Context, settings config.Settings) (*knowledgebase.KnowledgeBase, error) {
	opts := []knowledgebase.Option{
		knowledgebase.WithTopK(settings.RAG.TopK),
		knowledgebase.WithMinScore(settings.RAG.MinScore),
		knowledgebase.WithMaxFeatures(settings.RAG.MaxFeatures),
	}
	if settings.RAG.Embeddings == config.EmbeddingsOpenAI {
		opts = append(opts, knowledgebase.WithOpenAIEmbeddings(settings.Keys.OpenAI))
	}

	knowledge, err := knowledgebase.Load(ctx, settings.RAG.DocumentsPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	return knowledge, nil
}

// session closes the synthesizer together with the orchestrator.
type session struct {
	*orchestration.Orchestrator
	closers []io.Closer
}

func (s *session) Close() {
	s.Orchestrator.Close()
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			log.Printf("Warning: failed to close session resource: %v", err)
		}
	}
}

type speechToTextClient interface {
	orchestration.SpeechToText
	io.Closer
}

func (a *agent) newSession(context.Context) (transport.Session, error) {
	settings := a.settings
	encoding := audio.EncodingInfo{SampleRate: settings.STT.SampleRate, Format: audio.EncodingLinear16}

	var stt speechToTextClient
	switch settings.STT.Provider {
	case config.ProviderDeepgram:
		stt = sttdeepgram.NewTranscriptionClient(settings.Keys.Deepgram)
	default:
		stt = sttelevenlabs.NewTranscriptionClient(settings.Keys.ElevenLabs)
	}
	stt = languageOverride{speechToTextClient: stt, language: settings.STT.Language}

	s := &session{}
	var synthesizer orchestration.Synthesizer
	switch settings.TTS.Provider {
	case config.ProviderDeepgram:
		client := ttsdeepgram.NewTextToSpeechClient(settings.Keys.Deepgram)
		s.closers = append(s.closers, client)
		synthesizer = client
	default:
		synthesizer = ttselevenlabs.NewClient(settings.Keys.ElevenLabs, settings.TTS.VoiceID,
			ttselevenlabs.WithSynthesisOptions(
				texttospeech.WithModel(settings.TTS.ModelID),
				texttospeech.WithSpeed(settings.TTS.Speed),
			),
		)
	}

	opts := []orchestration.OrchestratorOption{
		orchestration.WithGenerator(a.llm),
		orchestration.WithClassifier(a.llm),
		orchestration.WithSynthesizer(synthesizer),
		orchestration.WithSpeechToTextClient(stt),
		orchestration.WithInputEncoding(encoding),
		orchestration.WithInstructions(a.instructions),
		orchestration.WithTasks(settings.Agent.Tasks...),
		orchestration.WithRetrievalKeywords(settings.Agent.RetrievalKeywords...),
	}
	if a.knowledge != nil {
		opts = append(opts,
			orchestration.WithRetriever(a.knowledge),
			orchestration.WithKnowledgeSummary(a.knowledge.Summary()),
		)
	}

	s.Orchestrator = orchestration.NewOrchestrator(opts...)
	return s, nil
}

// languageOverride pins the transcription language from the settings.
type languageOverride struct {
	speechToTextClient
	language string
}

func (l languageOverride) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	return l.speechToTextClient.Transcribe(ctx, append(opts, speechtotext.WithLanguage(l.language))...)
}

func (l languageOverride) Commit() error {
	if committer, ok := l.speechToTextClient.(interface{ Commit() error }); ok {
		return committer.Commit()
	}
	return nil
}

func newRouter(a *agent, settings config.Settings, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"knowledge_base": a.knowledge != nil,
			"llm_provider":   settings.LLM.Provider,
			"stt_provider":   settings.STT.Provider,
			"tts_provider":   settings.TTS.Provider,
		})
	})
	r.Get("/ws", transport.NewHandler(a.newSession,
		transport.WithVADConfig(settings.VAD),
		transport.WithCheckOrigin(func(*http.Request) bool { return true }),
	).ServeHTTP)
	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return otelhttp.NewHandler(r, "voiceagent")
}

func serve(ctx context.Context, settings config.Settings, handler http.Handler) error {
	// No read or write timeouts: they would apply to hijacked websocket
	// connections too.
	server := &http.Server{
		Addr:              settings.Server.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Shutdown does not track hijacked connections, so sessions end with
		// the serve context instead.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Listening on http://%s (llm=%s stt=%s tts=%s)",
			server.Addr, settings.LLM.Provider, settings.STT.Provider, settings.TTS.Provider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}
