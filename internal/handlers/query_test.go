package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/buddy-voice/internal/memory"
	"github.com/avvvet/buddy-voice/internal/metrics"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/avvvet/buddy-voice/internal/rag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine echoes the question and remembers what it was asked
type fakeEngine struct {
	mu      sync.Mutex
	err     error
	delay   time.Duration
	queries []rag.Query
}

func (f *fakeEngine) Answer(ctx context.Context, query rag.Query) (*rag.Answer, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	err, delay := f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", models.ErrCollaborator, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	return &rag.Answer{
		Text: "answer to " + query.Text,
		Chunks: []rag.Chunk{{
			Content:  "Check the caliper slide pins.",
			Metadata: map[string]any{"source": "brakes.pdf"},
			Score:    0.8,
		}},
	}, nil
}

func (f *fakeEngine) last() rag.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func nullLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func newTestHandler(engine rag.Engine, opts ...QueryOption) (*QueryHandler, *memory.Manager) {
	sessions := memory.NewManager(memory.WithLogger(nullLogger()))
	opts = append([]QueryOption{WithLogger(nullLogger())}, opts...)
	return NewQueryHandler(sessions, engine, opts...), sessions
}

func TestProcessQuery_NewSession(t *testing.T) {
	engine := &fakeEngine{}
	h, sessions := newTestHandler(engine)

	resp, err := h.ProcessQuery(context.Background(), &models.QueryRequest{Query: "How does the brake caliper work?"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, "answer to How does the brake caliper work?", resp.Summary)
	assert.Equal(t, "Brakes", resp.TopicName)
	assert.NotEmpty(t, resp.SessionID)
	assert.True(t, resp.ConversationActive)
	require.Len(t, resp.RelevantChunks, 1)
	assert.Equal(t, float32(0.8), resp.RelevantChunks[0].SimilarityScore)
	assert.Equal(t, "brakes.pdf", resp.RelevantChunks[0].Metadata["source"])

	session, err := sessions.Get(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.MessageCount())

	turns, err := session.Turns(context.Background())
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	assert.Empty(t, engine.last().History, "first query has no history")
}

func TestProcessQuery_ReusesLiveSession(t *testing.T) {
	engine := &fakeEngine{}
	h, sessions := newTestHandler(engine)
	ctx := context.Background()

	first, err := h.ProcessQuery(ctx, &models.QueryRequest{Query: "How does the brake caliper work?"})
	require.NoError(t, err)

	second, err := h.ProcessQuery(ctx, &models.QueryRequest{
		Query:     "What about the transmission fluid?",
		SessionID: first.SessionID,
	})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "Brakes", second.TopicName, "topic is sticky for the session")
	assert.Len(t, engine.last().History, 2)
	assert.Equal(t, 1, sessions.Count())

	session, err := sessions.Get(first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, session.MessageCount())
}

func TestProcessQuery_UnknownSessionBehavesLikeNone(t *testing.T) {
	h, sessions := newTestHandler(&fakeEngine{})

	resp, err := h.ProcessQuery(context.Background(), &models.QueryRequest{
		Query:     "engine misfire at idle",
		SessionID: "does-not-exist",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.NotEqual(t, "does-not-exist", resp.SessionID)
	assert.Equal(t, "Engine", resp.TopicName)
	assert.Equal(t, 1, sessions.Count())
}

func TestProcessQuery_NewTopicPhraseDropsSession(t *testing.T) {
	engine := &fakeEngine{}
	h, sessions := newTestHandler(engine)
	ctx := context.Background()

	first, err := h.ProcessQuery(ctx, &models.QueryRequest{Query: "brake pads squeal"})
	require.NoError(t, err)

	second, err := h.ProcessQuery(ctx, &models.QueryRequest{
		Query:     "new topic: my tire pressure light is on",
		SessionID: first.SessionID,
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, "Tires", second.TopicName)
	assert.Empty(t, engine.last().History)

	_, err = sessions.Get(first.SessionID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 1, sessions.Count())
}

func TestProcessQuery_EngineFailure(t *testing.T) {
	engine := &fakeEngine{err: fmt.Errorf("%w: chroma unreachable", models.ErrCollaborator)}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, nil)
	h, sessions := newTestHandler(engine, WithMetrics(m))

	resp, err := h.ProcessQuery(context.Background(), &models.QueryRequest{Query: "brake pads squeal"})
	require.NoError(t, err, "collaborator failures are reported in the response")

	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, models.ErrorTopicName, resp.TopicName)
	assert.Equal(t, models.ErrorCollaborator, resp.ErrorCode)
	assert.Contains(t, resp.Summary, "chroma unreachable")
	assert.NotNil(t, resp.RelevantChunks)
	assert.Empty(t, resp.RelevantChunks)

	session, err := sessions.Get(resp.SessionID)
	require.NoError(t, err, "the session is kept")
	assert.Equal(t, "Brakes", session.TopicName)
	assert.Equal(t, 1, session.MessageCount())

	turns, err := session.Turns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, turns, "the failed turn is not recorded")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryErrors.WithLabelValues(models.ErrorCollaborator)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Queries.WithLabelValues(models.StatusError)))
}

func TestProcessQuery_Timeout(t *testing.T) {
	engine := &fakeEngine{delay: time.Second}
	h, _ := newTestHandler(engine, WithAnswerTimeout(20*time.Millisecond))

	resp, err := h.ProcessQuery(context.Background(), &models.QueryRequest{Query: "coolant leak"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, models.ErrorCollaboratorTimeout, resp.ErrorCode)
}

func TestProcessQuery_Overrides(t *testing.T) {
	engine := &fakeEngine{}
	h, _ := newTestHandler(engine)
	threshold := float32(0.4)

	_, err := h.ProcessQuery(context.Background(), &models.QueryRequest{
		Query:               "exhaust rattle",
		MaxChunks:           3,
		SimilarityThreshold: &threshold,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, engine.last().TopK)
	assert.Equal(t, float32(0.4), engine.last().ScoreThreshold)
}

func TestProcessQuery_Errors(t *testing.T) {
	h, sessions := newTestHandler(&fakeEngine{})
	bad := float32(1.5)

	tests := []struct {
		name    string
		request *models.QueryRequest
	}{
		{"nil request", nil},
		{"empty query", &models.QueryRequest{}},
		{"blank query", &models.QueryRequest{Query: "   "}},
		{"negative max chunks", &models.QueryRequest{Query: "q", MaxChunks: -1}},
		{"threshold out of range", &models.QueryRequest{Query: "q", SimilarityThreshold: &bad}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.ProcessQuery(context.Background(), tt.request)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
	assert.Zero(t, sessions.Count(), "invalid requests create no session")

	unconfigured, _ := newTestHandler(nil)
	assert.False(t, unconfigured.Configured())
	_, err := unconfigured.ProcessQuery(context.Background(), &models.QueryRequest{Query: "q"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestProcessQuery_EvictsWhenCrowded(t *testing.T) {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	sessions := memory.NewManager(memory.WithClock(now), memory.WithLogger(nullLogger()))
	h := NewQueryHandler(sessions, &fakeEngine{},
		WithLogger(nullLogger()),
		WithEviction(2, 24*time.Hour),
	)

	for i := 0; i < 3; i++ {
		sessions.Create("Old")
	}
	clock = clock.Add(25 * time.Hour)

	resp, err := h.ProcessQuery(context.Background(), &models.QueryRequest{Query: "brake fade"})
	require.NoError(t, err)

	assert.Equal(t, 1, sessions.Count())
	_, err = sessions.Get(resp.SessionID)
	assert.NoError(t, err)
}

func TestProcessQuery_NoEvictionBelowThreshold(t *testing.T) {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	sessions := memory.NewManager(memory.WithClock(now), memory.WithLogger(nullLogger()))
	h := NewQueryHandler(sessions, &fakeEngine{}, WithLogger(nullLogger()))

	sessions.Create("Old")
	clock = clock.Add(48 * time.Hour)

	_, err := h.ProcessQuery(context.Background(), &models.QueryRequest{Query: "brake fade"})
	require.NoError(t, err)
	assert.Equal(t, 2, sessions.Count(), "idle sessions stay until the threshold is crossed")
}

func TestProcessQuery_Concurrent(t *testing.T) {
	h, sessions := newTestHandler(&fakeEngine{})
	ctx := context.Background()

	shared, err := h.ProcessQuery(ctx, &models.QueryRequest{Query: "steering pull"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp, err := h.ProcessQuery(ctx, &models.QueryRequest{Query: "steering pull", SessionID: shared.SessionID})
			if assert.NoError(t, err) {
				assert.Equal(t, shared.SessionID, resp.SessionID)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := h.ProcessQuery(ctx, &models.QueryRequest{Query: "fuel pump noise"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	session, err := sessions.Get(shared.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 21, session.MessageCount())

	turns, err := session.Turns(ctx)
	require.NoError(t, err)
	assert.Len(t, turns, 42)
	assert.Equal(t, 21, sessions.Count())
}

func TestProcessQuery_UnwrappedEngineError(t *testing.T) {
	h, _ := newTestHandler(&fakeEngine{err: errors.New("boom")})

	resp, err := h.ProcessQuery(context.Background(), &models.QueryRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.ErrorInternal, resp.ErrorCode)
	assert.Equal(t, "Sorry, I encountered an error: boom", resp.Summary)
}
