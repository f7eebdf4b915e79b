package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_Query(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/search/query", r.URL.Path)

		var req models.QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "brakes squeal", req.Query)
		assert.Equal(t, "s-1", req.SessionID)

		writeJSON(w, http.StatusOK, models.QueryResponse{
			Status:    models.StatusSuccess,
			Query:     req.Query,
			Summary:   "Check the pads.",
			SessionID: "s-1",
			TopicName: "Brakes",
		})
	})

	resp, err := c.Query(context.Background(), "brakes squeal", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Check the pads.", resp.Summary)
	assert.Equal(t, "Brakes", resp.TopicName)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":     models.StatusError,
			"message":    "session not found",
			"error_code": "NOT_FOUND",
		})
	})

	_, err := c.History(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "session not found", apiErr.Message)
	assert.Equal(t, "404 NOT_FOUND: session not found", err.Error())
}

func TestClient_APIErrorPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	err := c.Clear(context.Background(), "s-1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.Equal(t, "502: bad gateway", apiErr.Error())
}

func TestClient_History(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search/conversation/history", r.URL.Path)
		assert.Equal(t, "s-9", r.URL.Query().Get("session_id"))
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     models.StatusSuccess,
			"session_id": "s-9",
			"chat_history": []models.HistoryMessage{
				{Type: "human", Content: "q"},
				{Type: "ai", Content: "a"},
			},
		})
	})

	history, err := c.History(context.Background(), "s-9")
	require.NoError(t, err)
	assert.Equal(t, "s-9", history.SessionID)
	require.Len(t, history.ChatHistory, 2)
	assert.Equal(t, "ai", history.ChatHistory[1].Type)
}

func TestClient_SessionLifecycle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.SessionRequest
		if r.Method == http.MethodPost {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		}

		switch r.URL.Path {
		case "/api/v1/search/conversation/new":
			writeJSON(w, http.StatusOK, map[string]any{"session_id": "new-1", "topic_name": req.TopicName})
		case "/api/v1/search/conversation/reset":
			writeJSON(w, http.StatusOK, models.SessionReset{OldSessionID: req.SessionID, NewSessionID: "new-2", TopicName: req.TopicName})
		case "/api/v1/search/conversation/sessions":
			writeJSON(w, http.StatusOK, map[string]any{
				"active_sessions": 1,
				"sessions":        []models.SessionInfo{{SessionID: "new-2", TopicName: "Hvac"}},
			})
		case "/api/v1/search/conversation/clear":
			assert.Equal(t, "new-2", req.SessionID)
			writeJSON(w, http.StatusOK, map[string]any{"status": models.StatusSuccess})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	created, err := c.NewSession(ctx, "Engine")
	require.NoError(t, err)
	assert.Equal(t, "new-1", created.SessionID)
	assert.Equal(t, "Engine", created.TopicName)

	reset, err := c.Reset(ctx, "new-1", "Hvac")
	require.NoError(t, err)
	assert.Equal(t, "new-1", reset.OldSessionID)
	assert.Equal(t, "new-2", reset.NewSessionID)

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sessions.ActiveSessions)
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, "Hvac", sessions.Sessions[0].TopicName)

	require.NoError(t, c.Clear(ctx, "new-2"))
}

func TestClient_Transcript(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search/conversation/transcript", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"status": models.StatusSuccess,
			"messages": []map[string]string{
				{"role": "user", "content": "q"},
				{"role": "assistant", "content": "a"},
			},
		})
	})

	messages, err := c.Transcript(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestClient_Transcribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/speech/recognize", r.URL.Path)

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		assert.Equal(t, "clip.wav", header.Filename)
		assert.Equal(t, "RIFF", string(data))

		writeJSON(w, http.StatusOK, map[string]any{
			"status":           models.StatusSuccess,
			"recognized_text":  "hey buddy check the oil",
			"confidence_score": 0.95,
		})
	})

	result, err := c.Transcribe(context.Background(), "clip.wav", strings.NewReader("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "hey buddy check the oil", result.RecognizedText)
	assert.InDelta(t, 0.95, result.ConfidenceScore, 1e-9)
}

func TestClient_Synthesize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.SynthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		assert.Equal(t, 180, req.VoiceSettings.Rate)

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("WAVDATA"))
	})

	audio, err := c.Synthesize(context.Background(), "hello", models.VoiceSettings{Rate: 180})
	require.NoError(t, err)
	assert.Equal(t, []byte("WAVDATA"), audio)
}

func TestClient_SynthesizeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message":    "Azure Speech Service not configured",
			"error_code": "CONFIGURATION_ERROR",
		})
	})

	_, err := c.Synthesize(context.Background(), "hello", models.VoiceSettings{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "CONFIGURATION_ERROR", apiErr.Code)
}

func TestClient_WakeWord(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/wakeword/status":
			writeJSON(w, http.StatusOK, map[string]any{
				"status":          models.StatusSuccess,
				"listening":       true,
				"wake_word":       "hey buddy",
				"detection_count": 2,
			})
		case "/api/v1/wakeword/process":
			var req models.CommandRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			writeJSON(w, http.StatusOK, map[string]any{
				"status":              models.StatusSuccess,
				"query":               req.CommandText,
				"topic_name":          "Electrical",
				"command_text":        req.CommandText,
				"wake_word_triggered": true,
			})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"status": models.StatusSuccess})
		}
	})
	ctx := context.Background()

	require.NoError(t, c.WakeStart(ctx))

	status, err := c.WakeStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Listening)
	assert.Equal(t, "hey buddy", status.WakeWord)
	assert.Equal(t, 2, status.DetectionCount)

	resp, err := c.Command(ctx, "where is the fuse box", "")
	require.NoError(t, err)
	assert.Equal(t, "Electrical", resp.TopicName)

	require.NoError(t, c.WakeStop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /api/v1/wakeword/start",
		"GET /api/v1/wakeword/status",
		"POST /api/v1/wakeword/process",
		"POST /api/v1/wakeword/stop",
	}, calls)
}
