package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avvvet/buddy-voice/internal/memory"
	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/avvvet/buddy-voice/internal/wakeword"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// SessionsResponse lists live sessions
type SessionsResponse struct {
	ActiveSessions int                  `json:"active_sessions"`
	Sessions       []models.SessionInfo `json:"sessions"`
}

// NewSessionResponse describes a freshly created session
type NewSessionResponse struct {
	SessionID string    `json:"session_id"`
	TopicName string    `json:"topic_name"`
	CreatedAt time.Time `json:"created_at"`
}

// RecognizeResponse is the speech-to-text result
type RecognizeResponse struct {
	RecognizedText   string  `json:"recognized_text"`
	ConfidenceScore  float64 `json:"confidence_score"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
}

type transcriptResponse struct {
	Messages []memory.Message `json:"messages"`
}

// Client talks to the assistant REST API
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Query(ctx context.Context, query, sessionID string) (*models.QueryResponse, error) {
	var resp models.QueryResponse
	err := c.postJSON(ctx, "/api/v1/search/query", models.QueryRequest{Query: query, SessionID: sessionID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Sessions(ctx context.Context) (*SessionsResponse, error) {
	var resp SessionsResponse
	if err := c.getJSON(ctx, "/api/v1/search/conversation/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) History(ctx context.Context, sessionID string) (*models.SessionHistory, error) {
	var resp models.SessionHistory
	query := url.Values{"session_id": {sessionID}}
	if err := c.getJSON(ctx, "/api/v1/search/conversation/history", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transcript reads the archived messages of a session
func (c *Client) Transcript(ctx context.Context, sessionID string) ([]memory.Message, error) {
	var resp transcriptResponse
	query := url.Values{"session_id": {sessionID}}
	if err := c.getJSON(ctx, "/api/v1/search/conversation/transcript", query, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) Clear(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, "/api/v1/search/conversation/clear", models.SessionRequest{SessionID: sessionID}, nil)
}

func (c *Client) NewSession(ctx context.Context, topicName string) (*NewSessionResponse, error) {
	var resp NewSessionResponse
	if err := c.postJSON(ctx, "/api/v1/search/conversation/new", models.SessionRequest{TopicName: topicName}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Reset(ctx context.Context, sessionID, topicName string) (*models.SessionReset, error) {
	var resp models.SessionReset
	req := models.SessionRequest{SessionID: sessionID, TopicName: topicName}
	if err := c.postJSON(ctx, "/api/v1/search/conversation/reset", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transcribe uploads a WAV clip for recognition
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (*RecognizeResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("failed to copy audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/speech/recognize", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp RecognizeResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Synthesize returns WAV audio for text
func (c *Client) Synthesize(ctx context.Context, text string, settings models.VoiceSettings) ([]byte, error) {
	data, err := json.Marshal(models.SynthesizeRequest{Text: text, VoiceSettings: settings})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/tts/synthesize", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) WakeStart(ctx context.Context) error {
	return c.postJSON(ctx, "/api/v1/wakeword/start", nil, nil)
}

func (c *Client) WakeStop(ctx context.Context) error {
	return c.postJSON(ctx, "/api/v1/wakeword/stop", nil, nil)
}

func (c *Client) WakeStatus(ctx context.Context) (*wakeword.Status, error) {
	var resp wakeword.Status
	if err := c.getJSON(ctx, "/api/v1/wakeword/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Command sends the words spoken after the wake word as a query
func (c *Client) Command(ctx context.Context, commandText, sessionID string) (*models.QueryResponse, error) {
	var resp models.QueryResponse
	req := models.CommandRequest{CommandText: commandText, SessionID: sessionID}
	if err := c.postJSON(ctx, "/api/v1/wakeword/process", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Message   string `json:"message"`
		ErrorCode string `json:"error_code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}
	return &APIError{StatusCode: resp.StatusCode, Code: body.ErrorCode, Message: body.Message}
}
