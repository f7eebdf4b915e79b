package memory

import (
	"context"
	"time"
)

// Message represents a single archived message in a conversation
type Message struct {
	Role      string    `json:"role"`      // "user" or "assistant"
	Content   string    `json:"content"`   // The actual message text
	Timestamp time.Time `json:"timestamp"` // When the message was sent
}

// Turn is one entry of a session's memory as exposed to callers
type Turn struct {
	Type    string // "human" or "ai"
	Content string
}

// Summary describes a live session without exposing its memory
type Summary struct {
	ID           string
	TopicName    string
	CreatedAt    time.Time
	LastAccessed time.Time
	MessageCount int
}

// Store defines the interface for transcript archiving.
// Live sessions never load from it; it only keeps a reviewable record.
type Store interface {
	// SaveMessages appends messages to a session transcript, all or none
	SaveMessages(ctx context.Context, sessionID, topicName string, msgs ...Message) error

	// GetMessages retrieves the archived transcript for a session
	GetMessages(ctx context.Context, sessionID string) ([]Message, error)
}

// pinger is implemented by stores that can report their health
type pinger interface {
	Ping(ctx context.Context) error
}
