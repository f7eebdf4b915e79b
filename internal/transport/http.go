package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/avvvet/buddy-voice/internal/handlers"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/avvvet/buddy-voice/internal/speech"
	"github.com/avvvet/buddy-voice/internal/wakeword"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const (
	defaultHeartbeat   = 30 * time.Second
	healthCheckTimeout = 2 * time.Second
	maxAudioBytes      = 25 * 1024 * 1024
)

// Recognizer turns an audio clip into text
type Recognizer interface {
	Recognize(ctx context.Context, audio io.Reader) (*speech.Recognition, error)
}

// Synthesizer turns text into WAV audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, settings models.VoiceSettings) ([]byte, error)
}

// HTTPConfig tunes the HTTP server
type HTTPConfig struct {
	ServiceName     string
	RateLimitMax    int // 0 disables the limiter
	RateLimitWindow time.Duration
	Heartbeat       time.Duration
	AccessLog       bool
	// Middleware runs before every route, e.g. request metrics
	Middleware []fiber.Handler
}

// HTTPDeps are the services behind the routes. Nil speech collaborators
// make their endpoints answer with a configuration error.
type HTTPDeps struct {
	Queries     *handlers.QueryHandler
	Sessions    *handlers.SessionService
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Detector    *wakeword.Detector
	Log         logrus.FieldLogger
}

// HTTPServer exposes the assistant over REST
type HTTPServer struct {
	app       *fiber.App
	deps      HTTPDeps
	heartbeat time.Duration
	done      chan struct{}
	log       logrus.FieldLogger
}

func NewHTTPServer(cfg HTTPConfig, deps HTTPDeps) *HTTPServer {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	s := &HTTPServer{
		app: fiber.New(fiber.Config{
			AppName:      cfg.ServiceName,
			BodyLimit:    maxAudioBytes,
			ReadTimeout:  2 * time.Minute,
			IdleTimeout:  2 * time.Minute,
			ErrorHandler: errorHandler,
		}),
		deps:      deps,
		heartbeat: heartbeat,
		done:      make(chan struct{}),
		log:       deps.Log,
	}

	s.app.Use(recover.New())
	if cfg.AccessLog {
		s.app.Use(logger.New())
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	for _, mw := range cfg.Middleware {
		s.app.Use(mw)
	}
	if cfg.RateLimitMax > 0 {
		s.app.Use("/api", s.rateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))
	}

	s.routes()
	return s
}

// App exposes the fiber app for extra routes and tests
func (s *HTTPServer) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called
func (s *HTTPServer) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown ends open streams and stops the server
func (s *HTTPServer) Shutdown(timeout time.Duration) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *HTTPServer) routes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api/v1")

	search := api.Group("/search")
	search.Post("/query", s.query)

	conversation := search.Group("/conversation")
	conversation.Post("/clear", s.clearConversation)
	conversation.Get("/history", s.conversationHistory)
	conversation.Get("/sessions", s.listSessions)
	conversation.Post("/new", s.newSession)
	conversation.Post("/reset", s.resetSession)
	conversation.Get("/transcript", s.transcript)

	api.Post("/speech/recognize", s.recognize)
	api.Post("/tts/synthesize", s.synthesize)

	wake := api.Group("/wakeword")
	wake.Post("/start", s.startWakeWord)
	wake.Post("/stop", s.stopWakeWord)
	wake.Get("/status", s.wakeWordStatus)
	wake.Get("/stream", s.wakeWordStream)
	wake.Post("/process", s.processCommand)
}

func (s *HTTPServer) rateLimiter(limit int, window time.Duration) fiber.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "api:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			s.log.WithField("ip", c.IP()).Warn("Rate limit reached")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":      models.StatusError,
				"message":     "Too many requests. Please slow down.",
				"retry_after": int(window.Seconds()),
			})
		},
	})
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"status":     models.StatusError,
		"message":    err.Error(),
		"error_code": models.Code(err),
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"status":  models.StatusError,
			"message": fe.Message,
		})
	}
	return errorResponse(c, err)
}

// parseBody decodes an optional JSON body into out
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", models.ErrValidation, err)
	}
	return nil
}

func (s *HTTPServer) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	archive := s.deps.Sessions.ArchiveStatus(ctx)
	if archive == handlers.ArchiveUnavailable {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":             status,
		"active_sessions":    s.deps.Sessions.Count(),
		"transcript_archive": archive,
		"timestamp":          time.Now().UTC(),
	})
}

func (s *HTTPServer) query(c *fiber.Ctx) error {
	var req models.QueryRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}

	resp, err := s.deps.Queries.ProcessQuery(c.UserContext(), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

func (s *HTTPServer) clearConversation(c *fiber.Ctx) error {
	var req models.SessionRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}

	if err := s.deps.Sessions.Clear(req.SessionID); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"status":     models.StatusSuccess,
		"message":    "Conversation cleared",
		"session_id": req.SessionID,
	})
}

func (s *HTTPServer) conversationHistory(c *fiber.Ctx) error {
	history, err := s.deps.Sessions.History(c.UserContext(), c.Query("session_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"status":        models.StatusSuccess,
		"session_id":    history.SessionID,
		"chat_history":  history.ChatHistory,
		"created_at":    history.CreatedAt,
		"last_accessed": history.LastAccessed,
	})
}

func (s *HTTPServer) listSessions(c *fiber.Ctx) error {
	sessions := s.deps.Sessions.List()
	return c.JSON(fiber.Map{
		"status":          models.StatusSuccess,
		"active_sessions": len(sessions),
		"sessions":        sessions,
	})
}

func (s *HTTPServer) newSession(c *fiber.Ctx) error {
	var req models.SessionRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}

	session := s.deps.Sessions.New(req.TopicName)
	return c.JSON(fiber.Map{
		"status":     models.StatusSuccess,
		"message":    "New conversation session created",
		"session_id": session.SessionID,
		"topic_name": session.TopicName,
		"created_at": session.CreatedAt,
	})
}

func (s *HTTPServer) resetSession(c *fiber.Ctx) error {
	var req models.SessionRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}

	reset := s.deps.Sessions.Reset(req.SessionID, req.TopicName)
	return c.JSON(fiber.Map{
		"status":         models.StatusSuccess,
		"message":        "Session reset",
		"old_session_id": reset.OldSessionID,
		"new_session_id": reset.NewSessionID,
		"topic_name":     reset.TopicName,
		"created_at":     reset.CreatedAt,
	})
}

func (s *HTTPServer) transcript(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	messages, err := s.deps.Sessions.Transcript(c.UserContext(), sessionID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"status":     models.StatusSuccess,
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (s *HTTPServer) recognize(c *fiber.Ctx) error {
	start := time.Now()

	if s.deps.Recognizer == nil {
		return errorResponse(c, fmt.Errorf("%w: Azure Speech Service not configured", models.ErrConfiguration))
	}

	file, err := c.FormFile("audio")
	if err != nil {
		return errorResponse(c, fmt.Errorf("%w: no audio file provided", models.ErrValidation))
	}

	audio, err := file.Open()
	if err != nil {
		return errorResponse(c, fmt.Errorf("failed to read audio file: %w", err))
	}
	defer audio.Close()

	s.log.WithFields(logrus.Fields{
		"filename": file.Filename,
		"bytes":    file.Size,
	}).Info("Processing audio file")

	result, err := s.deps.Recognizer.Recognize(c.UserContext(), audio)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"status":             models.StatusSuccess,
		"recognized_text":    result.Text,
		"confidence_score":   result.Confidence,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

func (s *HTTPServer) synthesize(c *fiber.Ctx) error {
	var req models.SynthesizeRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return errorResponse(c, fmt.Errorf("%w: text is required", models.ErrValidation))
	}
	if s.deps.Synthesizer == nil {
		return errorResponse(c, fmt.Errorf("%w: Azure Speech Service not configured", models.ErrConfiguration))
	}

	audio, err := s.deps.Synthesizer.Synthesize(c.UserContext(), req.Text, req.VoiceSettings)
	if err != nil {
		return errorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, "audio/wav")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="speech.wav"`)
	return c.Send(audio)
}

func (s *HTTPServer) startWakeWord(c *fiber.Ctx) error {
	if err := s.deps.Detector.Start(); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"status":    models.StatusSuccess,
		"message":   "Wake word detection started",
		"wake_word": s.deps.Detector.WakeWord(),
		"listening": true,
	})
}

func (s *HTTPServer) stopWakeWord(c *fiber.Ctx) error {
	if err := s.deps.Detector.Stop(); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"status":    models.StatusSuccess,
		"message":   "Wake word detection stopped",
		"listening": false,
	})
}

func (s *HTTPServer) wakeWordStatus(c *fiber.Ctx) error {
	status := s.deps.Detector.Status()
	return c.JSON(fiber.Map{
		"status":            models.StatusSuccess,
		"listening":         status.Listening,
		"wake_word":         status.WakeWord,
		"recent_detections": status.RecentDetections,
		"detection_count":   status.DetectionCount,
	})
}

func (s *HTTPServer) wakeWordStream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	events, cancel := s.deps.Detector.Subscribe()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		streamDetections(w, events, s.heartbeat, s.done)
	}))
	return nil
}

// streamDetections writes one SSE event per detection plus heartbeats
// until the client goes away, the subscription closes or done is closed.
func streamDetections(w *bufio.Writer, events <-chan wakeword.Detection, heartbeat time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		var payload any
		select {
		case <-done:
			return
		case detection, ok := <-events:
			if !ok {
				return
			}
			payload = detection
		case t := <-ticker.C:
			payload = fiber.Map{"type": "heartbeat", "timestamp": t.Unix()}
		}

		if err := writeEvent(w, payload); err != nil {
			return
		}
	}
}

func writeEvent(w *bufio.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

// commandResponse is the query contract plus the wake word fields
type commandResponse struct {
	*models.QueryResponse
	CommandText       string `json:"command_text"`
	WakeWordTriggered bool   `json:"wake_word_triggered"`
}

func (s *HTTPServer) processCommand(c *fiber.Ctx) error {
	var req models.CommandRequest
	if err := parseBody(c, &req); err != nil {
		return errorResponse(c, err)
	}
	commandText := strings.TrimSpace(req.CommandText)
	if commandText == "" {
		return errorResponse(c, fmt.Errorf("%w: command_text is required", models.ErrValidation))
	}

	resp, err := s.deps.Queries.ProcessQuery(c.UserContext(), &models.QueryRequest{
		Query:     commandText,
		SessionID: req.SessionID,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(commandResponse{
		QueryResponse:     resp,
		CommandText:       commandText,
		WakeWordTriggered: true,
	})
}
