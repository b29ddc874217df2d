package config

import (
	"fmt"

	"github.com/koscakluka/ema-dialogue/core/conversations"
	"github.com/spf13/viper"
)

const (
	DefaultLLMModel      = "claude-haiku-4-5-20251001"
	DefaultVoiceID       = "ogdlaxy0T9rCSVdH0VJM"
	DefaultTTSModel      = "eleven_flash_v2_5"
	DefaultDocumentsPath = "data/products.md"

	defaultRetrievalKeywords = "produkt,empfehlen,sparen,ersparnisse,rente,pension,investieren," +
		"investition,vorsorge,säule,3a,3b,versicherung,vorschlag,option,plan," +
		"was haben sie,was bieten sie,product,recommend,save,savings,retire," +
		"retirement,invest,investment,pension,pillar,insurance,suggest"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetDefault("llm.provider", ProviderAnthropic)
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.classifier_model", DefaultLLMModel)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.temperature", 0.7)

	v.SetDefault("tts.provider", ProviderElevenLabs)
	v.SetDefault("tts.voice_id", DefaultVoiceID)
	v.SetDefault("tts.model_id", DefaultTTSModel)
	v.SetDefault("tts.speed", 1.1)

	v.SetDefault("stt.provider", ProviderElevenLabs)
	v.SetDefault("stt.language", "de")
	v.SetDefault("stt.sample_rate", 16000)

	v.SetDefault("rag.documents_path", DefaultDocumentsPath)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.min_score", 0.01)
	v.SetDefault("rag.max_features", 5000)
	v.SetDefault("rag.embeddings", EmbeddingsTFIDF)

	v.SetDefault("vad.threshold", 0.08)
	v.SetDefault("vad.silence_duration_ms", 1200)
	v.SetDefault("vad.debounce_ms", 800)

	v.SetDefault("agent.system_prompt_file", "")
	v.SetDefault("agent.retrieval_keywords", defaultRetrievalKeywords)
}

// envBindings maps settings keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"server.host": "SERVER_HOST",
	"server.port": "SERVER_PORT",

	"keys.anthropic":  "ANTHROPIC_API_KEY",
	"keys.elevenlabs": "ELEVENLABS_API_KEY",
	"keys.deepgram":   "DEEPGRAM_API_KEY",
	"keys.groq":       "GROQ_API_KEY",
	"keys.openai":     "OPENAI_API_KEY",

	"llm.provider":         "LLM_PROVIDER",
	"llm.model":            "LLM_MODEL",
	"llm.classifier_model": "LLM_CLASSIFIER_MODEL",
	"llm.max_tokens":       "LLM_MAX_TOKENS",
	"llm.temperature":      "LLM_TEMPERATURE",

	"tts.provider": "TTS_PROVIDER",
	"tts.voice_id": "ELEVENLABS_VOICE_ID",
	"tts.model_id": "TTS_MODEL_ID",
	"tts.speed":    "TTS_SPEED",

	"stt.provider":    "STT_PROVIDER",
	"stt.language":    "STT_LANGUAGE",
	"stt.sample_rate": "STT_SAMPLE_RATE",

	"rag.documents_path": "RAG_DOCUMENTS_PATH",
	"rag.top_k":          "RAG_TOP_K",
	"rag.max_features":   "RAG_MAX_FEATURES",
	"rag.embeddings":     "RAG_EMBEDDINGS",

	"vad.threshold":           "VAD_THRESHOLD",
	"vad.silence_duration_ms": "VAD_SILENCE_DURATION_MS",
	"vad.debounce_ms":         "VAD_DEBOUNCE_MS",

	"agent.system_prompt_file": "SYSTEM_PROMPT_FILE",
	"agent.retrieval_keywords": "RAG_TRIGGER_KEYWORDS",
}

func bindEnv(v *viper.Viper) error {
	for key, variable := range envBindings {
		if err := v.BindEnv(key, variable); err != nil {
			return fmt.Errorf("failed to bind %s: %w", variable, err)
		}
	}
	return nil
}

// DefaultTasks is the advisory conversation the agent runs when the client
// does not configure its own tasks.
func DefaultTasks() []conversations.Task {
	return []conversations.Task{
		{ID: 1, Description: "Begrüssung und Vorstellung als Swiss Life Berater"},
		{ID: 2, Description: "Namen des Kunden erfragen"},
		{ID: 3, Description: "Versicherungssituation und finanzielle Ziele verstehen"},
		{ID: 4, Description: "Passendes Swiss Life Produkt empfehlen und erklären"},
		{ID: 5, Description: "Interesse an Angebot bestätigen"},
		{ID: 6, Description: "Notwendige Daten für Angebot erfassen"},
		{ID: 7, Description: "Nächste Schritte erklären und verabschieden"},
	}
}
