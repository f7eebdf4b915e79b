package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/avvvet/buddy-voice/internal/config"
	"github.com/avvvet/buddy-voice/internal/handlers"
	"github.com/avvvet/buddy-voice/internal/jobs"
	"github.com/avvvet/buddy-voice/internal/llm"
	"github.com/avvvet/buddy-voice/internal/logging"
	"github.com/avvvet/buddy-voice/internal/memory"
	"github.com/avvvet/buddy-voice/internal/metrics"
	"github.com/avvvet/buddy-voice/internal/rag"
	"github.com/avvvet/buddy-voice/internal/speech"
	"github.com/avvvet/buddy-voice/internal/transport"
	"github.com/avvvet/buddy-voice/internal/wakeword"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env file if it exists (for development)
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("❌ Failed to load config: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.Environment)
	if envErr != nil {
		log.Info("No .env file found, using environment variables")
	}

	log.Infof("🚀 Starting %s...", cfg.ServiceName)
	log.Infof("📋 Environment: %s", cfg.Environment)

	// Transcript archive
	memoryOpts := []memory.Option{memory.WithLogger(log)}
	if cfg.RedisURL != "" {
		log.Info("🔌 Connecting to Redis...")
		redisStore, err := memory.NewRedisStore(cfg.RedisURL, cfg.TranscriptTTL)
		if err != nil {
			log.Warnf("⚠️ Transcript archive disabled: %v", err)
		} else {
			defer redisStore.Close()
			memoryOpts = append(memoryOpts, memory.WithTranscripts(redisStore))
			log.Info("✅ Redis connected")
		}
	}

	// Session registry
	sessions := memory.NewManager(memoryOpts...)
	m := metrics.New(prometheus.DefaultRegisterer, sessions.Count)
	log.Info("✅ Session manager initialized")

	// Retrieval engine
	var engine rag.Engine
	if cfg.RAGConfigured() {
		retrieval, err := buildEngine(cfg, log)
		if err != nil {
			log.Warnf("⚠️ Retrieval engine unavailable: %v", err)
		} else {
			engine = retrieval
			log.Infof("🤖 Azure OpenAI deployment: %s", cfg.ChatDeployment)
			log.Infof("📚 Vector collection: %s", cfg.CollectionName)
		}
	} else {
		log.Warn("⚠️ Azure OpenAI or vector store not configured, queries will fail")
	}

	queries := handlers.NewQueryHandler(sessions, engine,
		handlers.WithAnswerTimeout(cfg.AnswerTimeout),
		handlers.WithEviction(cfg.SessionEvictThreshold, cfg.SessionMaxIdle),
		handlers.WithMetrics(m),
		handlers.WithLogger(log),
	)

	deps := transport.HTTPDeps{
		Queries:  queries,
		Sessions: handlers.NewSessionService(sessions),
		Log:      log,
	}

	// Speech services
	if cfg.SpeechConfigured() {
		speechOpts := []speech.Option{speech.WithMetrics(m), speech.WithLogger(log)}
		deps.Recognizer = speech.NewRecognizer(cfg.AzureSpeechKey, cfg.AzureSpeechRegion, cfg.SpeechLanguage, speechOpts...)
		deps.Synthesizer = speech.NewSynthesizer(cfg.AzureSpeechKey, cfg.AzureSpeechRegion, cfg.SpeechLanguage,
			cfg.TTSDefaultVoice, cfg.TTSCacheTTL, speechOpts...)
		log.Infof("🎙️ Azure Speech region: %s", cfg.AzureSpeechRegion)
	} else {
		log.Warn("⚠️ Azure Speech not configured, speech endpoints disabled")
	}

	// Wake word detector
	detector := wakeword.NewDetector(cfg.WakeWord,
		wakeword.WithMaxResults(cfg.WakeMaxResults),
		wakeword.WithMetrics(m),
		wakeword.WithLogger(log),
	)
	deps.Detector = detector

	// NATS transport
	var natsTransport *transport.NATSTransport
	if cfg.NatsURL != "" {
		log.Info("📡 Connecting to NATS...")
		natsTransport, err = transport.NewNATSTransport(cfg, queries, log)
		if err != nil {
			log.Fatalf("❌ Failed to initialize NATS transport: %v", err)
		}
		if err := natsTransport.Start(); err != nil {
			log.Fatalf("❌ Failed to start NATS transport: %v", err)
		}
		detector.AttachFeed(natsTransport.Feed())
		log.Infof("👂 Listening on subject: %s", cfg.NatsQuerySubject)
	}

	// Idle session sweeper
	var sweeper *jobs.Sweeper
	if cfg.SessionSweepInterval > 0 {
		sweeper, err = jobs.NewSweeper(sessions, cfg.SessionMaxIdle, cfg.SessionSweepInterval, m, log)
		if err != nil {
			log.Fatalf("❌ Failed to create session sweeper: %v", err)
		}
		sweeper.Start()
		log.Infof("🧹 Sweeping idle sessions every %s", cfg.SessionSweepInterval)
	}

	// HTTP server
	requestMetrics := fiberprometheus.New(cfg.ServiceName)
	server := transport.NewHTTPServer(transport.HTTPConfig{
		ServiceName:     cfg.ServiceName,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		AccessLog:       cfg.Environment != "production",
		Middleware:      []fiber.Handler{requestMetrics.Middleware},
	}, deps)
	requestMetrics.RegisterAt(server.App(), "/metrics")
	log.Info("📊 Prometheus metrics endpoint enabled at /metrics")

	go func() {
		if err := server.Listen(cfg.HTTPAddr); err != nil {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	log.Infof("✅ %s is running on %s", cfg.ServiceName, cfg.HTTPAddr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Infof("🛑 Received signal: %v", sig)
	log.Info("🔄 Shutting down gracefully...")

	log.Infof("📊 Final session count: %d", sessions.Count())

	if err := server.Shutdown(10 * time.Second); err != nil {
		log.Warnf("⚠️ Error shutting down HTTP server: %v", err)
	}

	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			log.Warnf("⚠️ Error stopping session sweeper: %v", err)
		}
	}

	if detector.Listening() {
		if err := detector.Stop(); err != nil {
			log.Warnf("⚠️ Error stopping wake word detector: %v", err)
		}
	}

	if natsTransport != nil {
		if err := natsTransport.Close(); err != nil {
			log.Warnf("⚠️ Error closing NATS transport: %v", err)
		}
	}

	log.Infof("👋 %s stopped", cfg.ServiceName)
}

// buildEngine connects the chat model, embedder and vector store
func buildEngine(cfg *config.Config, log logrus.FieldLogger) (*rag.RetrievalEngine, error) {
	client, err := llm.NewAzureOpenAI(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := llm.NewEmbedder(client)
	if err != nil {
		return nil, err
	}

	index, err := rag.NewChromaIndex(cfg, embedder)
	if err != nil {
		return nil, err
	}

	return rag.NewRetrievalEngine(index, client,
		rag.WithTopK(cfg.RetrievalTopK),
		rag.WithScoreThreshold(cfg.SimilarityThreshold),
		rag.WithLogger(log),
	), nil
}
