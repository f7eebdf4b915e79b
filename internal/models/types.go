package models

import "time"

// QueryRequest is the inbound conversational query, shared by HTTP and NATS.
type QueryRequest struct {
	Query               string   `json:"query"`
	SessionID           string   `json:"session_id,omitempty"`
	MaxChunks           int      `json:"max_chunks,omitempty"`
	SimilarityThreshold *float32 `json:"similarity_threshold,omitempty"`
}

// RelevantChunk is a retrieved span of source text returned with an answer.
type RelevantChunk struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float32        `json:"similarity_score"`
}

// QueryResponse is the answer contract for every query path.
type QueryResponse struct {
	Status             string          `json:"status"` // "success" or "error"
	Query              string          `json:"query"`
	Summary            string          `json:"summary"`
	SessionID          string          `json:"session_id"`
	TopicName          string          `json:"topic_name"`
	RelevantChunks     []RelevantChunk `json:"relevant_chunks"`
	ProcessingTimeMs   int64           `json:"processing_time_ms"`
	ConversationActive bool            `json:"conversation_active"`
	ErrorCode          string          `json:"error_code,omitempty"`
}

// HistoryMessage is one entry of a session's chat history.
type HistoryMessage struct {
	Type    string `json:"type"` // "human" or "ai"
	Content string `json:"content"`
}

// SessionInfo summarizes a live session.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	TopicName    string    `json:"topic_name"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	MessageCount int       `json:"message_count"`
}

// SessionHistory is the chat history of one session.
type SessionHistory struct {
	SessionID    string           `json:"session_id"`
	ChatHistory  []HistoryMessage `json:"chat_history"`
	CreatedAt    time.Time        `json:"created_at"`
	LastAccessed time.Time        `json:"last_accessed"`
}

// SessionReset reports the outcome of replacing a session.
type SessionReset struct {
	OldSessionID string    `json:"old_session_id,omitempty"`
	NewSessionID string    `json:"new_session_id"`
	TopicName    string    `json:"topic_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionRequest is the body of the clear/new/reset endpoints.
type SessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	TopicName string `json:"topic_name,omitempty"`
}

// VoiceSettings tune speech synthesis.
type VoiceSettings struct {
	Rate   int     `json:"rate,omitempty"`   // words per minute
	Volume float64 `json:"volume,omitempty"` // 0..1
	Voice  string  `json:"voice,omitempty"`
}

// SynthesizeRequest is the text-to-speech request body.
type SynthesizeRequest struct {
	Text          string        `json:"text"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// CommandRequest carries the text spoken after the wake word.
type CommandRequest struct {
	CommandText string `json:"command_text"`
	SessionID   string `json:"session_id,omitempty"`
}

// Status constants
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Topic labels
const (
	DefaultTopicName = "New Topic"
	ErrorTopicName   = "Error"
)
