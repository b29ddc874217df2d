// Package config loads the voice agent settings. Values are layered as
// built-in defaults, an optional YAML file, then environment variables; a
// .env file in the working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/koscakluka/ema-dialogue/core/retrieval"
	"github.com/spf13/viper"
)

const (
	ProviderAnthropic  = "anthropic"
	ProviderGroq       = "groq"
	ProviderElevenLabs = "elevenlabs"
	ProviderDeepgram   = "deepgram"

	EmbeddingsTFIDF  = "tfidf"
	EmbeddingsOpenAI = "openai"
)

var ErrInvalid = errors.New("invalid configuration")

type Settings struct {
	Server ServerSettings `mapstructure:"server"`
	Keys   APIKeys        `mapstructure:"keys"`
	LLM    LLMSettings    `mapstructure:"llm"`
	TTS    TTSSettings    `mapstructure:"tts"`
	STT    STTSettings    `mapstructure:"stt"`
	RAG    RAGSettings    `mapstructure:"rag"`
	VAD    VADSettings    `mapstructure:"vad"`
	Agent  AgentSettings  `mapstructure:"agent"`
}

type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerSettings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type APIKeys struct {
	Anthropic  string `mapstructure:"anthropic"`
	ElevenLabs string `mapstructure:"elevenlabs"`
	Deepgram   string `mapstructure:"deepgram"`
	Groq       string `mapstructure:"groq"`
	OpenAI     string `mapstructure:"openai"`
}

type LLMSettings struct {
	Provider        string  `mapstructure:"provider"`
	Model           string  `mapstructure:"model"`
	ClassifierModel string  `mapstructure:"classifier_model"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
}

type TTSSettings struct {
	Provider string  `mapstructure:"provider"`
	VoiceID  string  `mapstructure:"voice_id"`
	ModelID  string  `mapstructure:"model_id"`
	Speed    float64 `mapstructure:"speed"`
}

type STTSettings struct {
	Provider   string `mapstructure:"provider"`
	Language   string `mapstructure:"language"`
	SampleRate int    `mapstructure:"sample_rate"`
}

type RAGSettings struct {
	DocumentsPath string  `mapstructure:"documents_path"`
	TopK          int     `mapstructure:"top_k"`
	MinScore      float64 `mapstructure:"min_score"`
	MaxFeatures   int     `mapstructure:"max_features"`
	Embeddings    string  `mapstructure:"embeddings"`
}

// VADSettings tune voice activity detection in the browser. The server only
// hands them to the client.
type VADSettings struct {
	Threshold         float64 `mapstructure:"threshold" json:"threshold"`
	SilenceDurationMS int     `mapstructure:"silence_duration_ms" json:"silence_duration_ms"`
	DebounceMS        int     `mapstructure:"debounce_ms" json:"debounce_ms"`
}

type AgentSettings struct {
	SystemPromptFile  string               `mapstructure:"system_prompt_file"`
	RetrievalKeywords []string             `mapstructure:"retrieval_keywords"`
	Tasks             []conversations.Task `mapstructure:"tasks"`
}

type loadOptions struct {
	configFile  string
	dotenvFiles []string
	skipDotenv  bool
}

type Option func(*loadOptions)

// WithConfigFile reads a YAML file on top of the defaults. Environment
// variables still take precedence.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithDotenv loads the given files instead of ./.env.
func WithDotenv(files ...string) Option {
	return func(o *loadOptions) { o.dotenvFiles = files }
}

func WithoutDotenv() Option {
	return func(o *loadOptions) { o.skipDotenv = true }
}

// Load resolves the settings without validating them, so commands that need
// only part of the settings can run with an incomplete environment.
func Load(opts ...Option) (Settings, error) {
	options := loadOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if !options.skipDotenv {
		// A missing .env is the normal case outside development.
		_ = godotenv.Load(options.dotenvFiles...)
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Settings{}, err
	}

	if options.configFile != "" {
		v.SetConfigFile(options.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", options.configFile, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	settings.normalize()

	return settings, nil
}

func (s *Settings) normalize() {
	s.LLM.Provider = strings.ToLower(strings.TrimSpace(s.LLM.Provider))
	s.TTS.Provider = strings.ToLower(strings.TrimSpace(s.TTS.Provider))
	s.STT.Provider = strings.ToLower(strings.TrimSpace(s.STT.Provider))
	s.RAG.Embeddings = strings.ToLower(strings.TrimSpace(s.RAG.Embeddings))

	s.Agent.RetrievalKeywords = retrieval.ParseKeywords(strings.Join(s.Agent.RetrievalKeywords, ","))

	if len(s.Agent.Tasks) == 0 {
		s.Agent.Tasks = DefaultTasks()
	}
}

// Validate checks the settings needed to serve sessions with the selected
// providers and reports every problem at once.
func (s Settings) Validate() error {
	var errs []error
	require := func(value, variable, reason string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required %s", variable, reason))
		}
	}

	switch s.LLM.Provider {
	case ProviderAnthropic:
		require(s.Keys.Anthropic, "ANTHROPIC_API_KEY", "for the anthropic language model")
	case ProviderGroq:
		require(s.Keys.Groq, "GROQ_API_KEY", "for the groq language model")
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", s.LLM.Provider))
	}

	for _, selected := range []struct{ variable, role, provider string }{
		{"TTS_PROVIDER", "speech synthesis", s.TTS.Provider},
		{"STT_PROVIDER", "transcription", s.STT.Provider},
	} {
		switch selected.provider {
		case ProviderElevenLabs:
			require(s.Keys.ElevenLabs, "ELEVENLABS_API_KEY", "for elevenlabs "+selected.role)
		case ProviderDeepgram:
			require(s.Keys.Deepgram, "DEEPGRAM_API_KEY", "for deepgram "+selected.role)
		default:
			errs = append(errs, fmt.Errorf("unknown %s %q", selected.variable, selected.provider))
		}
	}

	switch s.RAG.Embeddings {
	case EmbeddingsTFIDF:
	case EmbeddingsOpenAI:
		require(s.Keys.OpenAI, "OPENAI_API_KEY", "for openai embeddings")
	default:
		errs = append(errs, fmt.Errorf("unknown RAG_EMBEDDINGS %q", s.RAG.Embeddings))
	}

	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d is out of range", s.Server.Port))
	}
	if s.STT.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("STT_SAMPLE_RATE must be positive, got %d", s.STT.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
