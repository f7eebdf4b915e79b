package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avvvet/buddy-voice/internal/intent"
	"github.com/avvvet/buddy-voice/internal/memory"
	"github.com/avvvet/buddy-voice/internal/metrics"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/avvvet/buddy-voice/internal/rag"
	"github.com/sirupsen/logrus"
)

const (
	defaultAnswerTimeout  = 60 * time.Second
	defaultEvictThreshold = 50
	defaultMaxIdle        = 24 * time.Hour
)

// QueryHandler routes each query to a session and asks the engine for an answer
type QueryHandler struct {
	sessions       *memory.Manager
	engine         rag.Engine
	timeout        time.Duration
	evictThreshold int
	maxIdle        time.Duration
	metrics        *metrics.Metrics
	log            logrus.FieldLogger
}

// QueryOption configures a QueryHandler
type QueryOption func(*QueryHandler)

// WithAnswerTimeout bounds each engine call
func WithAnswerTimeout(d time.Duration) QueryOption {
	return func(h *QueryHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithEviction sets the live-session count above which idle sessions are evicted
func WithEviction(threshold int, maxIdle time.Duration) QueryOption {
	return func(h *QueryHandler) {
		h.evictThreshold = threshold
		if maxIdle > 0 {
			h.maxIdle = maxIdle
		}
	}
}

// WithMetrics records query metrics
func WithMetrics(m *metrics.Metrics) QueryOption {
	return func(h *QueryHandler) { h.metrics = m }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) QueryOption {
	return func(h *QueryHandler) { h.log = log }
}

// NewQueryHandler creates a query handler. A nil engine leaves the handler
// unconfigured: every query then fails with a configuration error.
func NewQueryHandler(sessions *memory.Manager, engine rag.Engine, opts ...QueryOption) *QueryHandler {
	h := &QueryHandler{
		sessions:       sessions,
		engine:         engine,
		timeout:        defaultAnswerTimeout,
		evictThreshold: defaultEvictThreshold,
		maxIdle:        defaultMaxIdle,
		log:            logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Configured reports whether an engine is attached
func (h *QueryHandler) Configured() bool {
	return h.engine != nil
}

// ProcessQuery answers one query. Collaborator failures are reported inside the
// response; the returned error is only for invalid requests or missing configuration.
func (h *QueryHandler) ProcessQuery(ctx context.Context, request *models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()

	if h.engine == nil {
		return nil, fmt.Errorf("%w: language model or vector store not configured", models.ErrConfiguration)
	}
	if err := h.validateRequest(request); err != nil {
		return nil, err
	}

	query := strings.TrimSpace(request.Query)
	session := h.resolveSession(query, request.SessionID)
	session.IncrementMessageCount()

	h.evictIfCrowded()

	logger := h.log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"topic":      session.TopicName,
	})
	logger.Info("Processing query")

	answer, err := h.answer(ctx, session, query, request)
	if err != nil {
		code := models.Code(err)
		logger.WithError(err).WithField("error_code", code).Error("Failed to answer query")
		h.metrics.RecordQueryError(code)
		h.metrics.RecordQuery(models.StatusError, time.Since(start).Seconds())
		return h.createErrorResponse(query, session.ID, code, err, start), nil
	}

	if err := h.sessions.RecordTurn(ctx, session, query, answer.Text); err != nil {
		logger.WithError(err).Warn("Failed to record turn")
	}

	response := &models.QueryResponse{
		Status:             models.StatusSuccess,
		Query:              query,
		Summary:            answer.Text,
		SessionID:          session.ID,
		TopicName:          session.TopicName,
		RelevantChunks:     toRelevantChunks(answer.Chunks),
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
		ConversationActive: true,
	}

	h.metrics.RecordQuery(models.StatusSuccess, time.Since(start).Seconds())
	logger.WithFields(logrus.Fields{
		"chunks":   len(response.RelevantChunks),
		"duration": time.Since(start),
	}).Info("Query answered")

	return response, nil
}

func (h *QueryHandler) validateRequest(request *models.QueryRequest) error {
	if request == nil || strings.TrimSpace(request.Query) == "" {
		return fmt.Errorf("%w: query is required", models.ErrValidation)
	}
	if request.MaxChunks < 0 {
		return fmt.Errorf("%w: max_chunks must not be negative", models.ErrValidation)
	}
	if t := request.SimilarityThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("%w: similarity_threshold must be between 0 and 1", models.ErrValidation)
	}
	return nil
}

// resolveSession picks the session a query belongs to. A new-topic phrase
// drops the supplied session; unknown ids start a fresh one.
func (h *QueryHandler) resolveSession(query, sessionID string) *memory.Session {
	if sessionID != "" {
		if intent.IsNewTopicRequest(query) {
			if h.sessions.Delete(sessionID) {
				h.log.WithField("session_id", sessionID).Info("Cleared session on new topic request")
			}
		} else if session, err := h.sessions.Get(sessionID); err == nil {
			return session
		}
	}

	return h.sessions.Create(intent.ClassifyTopic(query))
}

func (h *QueryHandler) evictIfCrowded() {
	if h.sessions.Count() <= h.evictThreshold {
		return
	}

	removed := h.sessions.EvictIdle(h.maxIdle)
	h.metrics.RecordEvictions(removed)
	if removed > 0 {
		h.log.WithField("evicted", removed).Info("Evicted idle sessions")
	}
}

func (h *QueryHandler) answer(ctx context.Context, session *memory.Session, query string, request *models.QueryRequest) (*rag.Answer, error) {
	history, err := session.History(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	q := rag.Query{
		Text:    query,
		History: history,
		TopK:    request.MaxChunks,
	}
	if request.SimilarityThreshold != nil {
		q.ScoreThreshold = *request.SimilarityThreshold
	}

	return h.engine.Answer(ctx, q)
}

func (h *QueryHandler) createErrorResponse(query, sessionID, code string, err error, start time.Time) *models.QueryResponse {
	return &models.QueryResponse{
		Status:             models.StatusError,
		Query:              query,
		Summary:            fmt.Sprintf("Sorry, I encountered an error: %v", err),
		SessionID:          sessionID,
		TopicName:          models.ErrorTopicName,
		RelevantChunks:     []models.RelevantChunk{},
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
		ConversationActive: true,
		ErrorCode:          code,
	}
}

func toRelevantChunks(chunks []rag.Chunk) []models.RelevantChunk {
	out := make([]models.RelevantChunk, 0, len(chunks))
	for _, chunk := range chunks {
		metadata := chunk.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		out = append(out, models.RelevantChunk{
			Content:         chunk.Content,
			Metadata:        metadata,
			SimilarityScore: chunk.Score,
		})
	}
	return out
}
