package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/avvvet/buddy-voice/internal/models"
)

type Config struct {
	// Service configuration
	ServiceName string
	Environment string
	LogLevel    string
	HTTPAddr    string

	// Azure OpenAI configuration
	AzureOpenAIKey        string
	AzureOpenAIEndpoint   string
	ChatDeployment        string
	EmbeddingDeployment   string
	AzureOpenAIAPIVersion string
	AnswerTimeout         time.Duration

	// Vector store configuration
	ChromaURL           string
	CollectionName      string
	RetrievalTopK       int
	SimilarityThreshold float32

	// Session configuration
	SessionMaxIdle        time.Duration
	SessionEvictThreshold int
	SessionSweepInterval  time.Duration

	// Transcript archive (Redis)
	RedisURL      string
	TranscriptTTL time.Duration

	// NATS configuration
	NatsURL               string
	NatsQuerySubject      string
	NatsTranscriptSubject string
	NatsTimeout           time.Duration

	// Azure Speech configuration
	AzureSpeechKey    string
	AzureSpeechRegion string
	SpeechLanguage    string
	TTSDefaultVoice   string
	TTSCacheTTL       time.Duration

	// Wake word
	WakeWord       string
	WakeMaxResults int

	// Rate limiting
	RateLimitMax    int
	RateLimitWindow time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		// Service settings
		ServiceName: getEnv("SERVICE_NAME", "buddy-voice"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),

		// Azure OpenAI settings
		AzureOpenAIKey:        getEnv("AZURE_OPENAI_KEY", ""),
		AzureOpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		ChatDeployment:        getEnv("CHATGPT_MODEL_NAME", ""),
		EmbeddingDeployment:   getEnv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-3-large"),
		AzureOpenAIAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2025-01-01-preview"),
		AnswerTimeout:         getDurationEnv("ANSWER_TIMEOUT", 60*time.Second),

		// Vector store settings
		ChromaURL:           getEnv("CHROMA_URL", "http://localhost:8001"),
		CollectionName:      getEnv("VECTOR_COLLECTION_NAME", "voice_assistant_docs"),
		RetrievalTopK:       getIntEnv("RETRIEVAL_TOP_K", 5),
		SimilarityThreshold: float32(getFloatEnv("SIMILARITY_THRESHOLD", 0)),

		// Session settings
		SessionMaxIdle:        getDurationEnv("SESSION_MAX_IDLE", 24*time.Hour),
		SessionEvictThreshold: getIntEnv("SESSION_EVICT_THRESHOLD", 50),
		SessionSweepInterval:  getDurationEnv("SESSION_SWEEP_INTERVAL", time.Hour),

		// Transcript settings
		RedisURL:      getEnv("REDIS_URL", ""),
		TranscriptTTL: getDurationEnv("TRANSCRIPT_TTL", 7*24*time.Hour),

		// NATS settings
		NatsURL:               getEnv("NATS_URL", ""),
		NatsQuerySubject:      getEnv("NATS_QUERY_SUBJECT", "assistant.query"),
		NatsTranscriptSubject: getEnv("NATS_TRANSCRIPT_SUBJECT", "speech.transcripts"),
		NatsTimeout:           getDurationEnv("NATS_TIMEOUT", 30*time.Second),

		// Speech settings
		AzureSpeechKey:    getEnv("AZURE_SPEECH_KEY", ""),
		AzureSpeechRegion: getEnv("AZURE_SPEECH_REGION", ""),
		SpeechLanguage:    getEnv("SPEECH_LANGUAGE", "en-US"),
		TTSDefaultVoice:   getEnv("TTS_DEFAULT_VOICE", "en-US-JennyNeural"),
		TTSCacheTTL:       getDurationEnv("TTS_CACHE_TTL", time.Hour),

		// Wake word settings
		WakeWord:       getEnv("WAKE_WORD", "hey buddy"),
		WakeMaxResults: getIntEnv("WAKE_MAX_RESULTS", 10),

		// Rate limit settings
		RateLimitMax:    getIntEnv("RATE_LIMIT_MAX", 120),
		RateLimitWindow: getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("%w: RETRIEVAL_TOP_K must be positive, got %d", models.ErrConfiguration, c.RetrievalTopK)
	}
	if c.SessionEvictThreshold < 0 {
		return fmt.Errorf("%w: SESSION_EVICT_THRESHOLD must not be negative", models.ErrConfiguration)
	}
	if c.SessionMaxIdle <= 0 {
		return fmt.Errorf("%w: SESSION_MAX_IDLE must be positive", models.ErrConfiguration)
	}
	if c.WakeWord == "" {
		return fmt.Errorf("%w: WAKE_WORD must not be empty", models.ErrConfiguration)
	}
	return nil
}

// RAGConfigured reports whether the language model and vector store can be reached.
func (c *Config) RAGConfigured() bool {
	return c.AzureOpenAIKey != "" && c.AzureOpenAIEndpoint != "" && c.ChatDeployment != "" &&
		c.ChromaURL != "" && c.CollectionName != ""
}

// SpeechConfigured reports whether Azure Speech credentials are present.
func (c *Config) SpeechConfigured() bool {
	return c.AzureSpeechKey != "" && c.AzureSpeechRegion != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
