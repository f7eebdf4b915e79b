package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"
)

// Session is one live conversation. ID, TopicName and CreatedAt never change
// after creation; everything else is guarded by mu.
type Session struct {
	ID        string
	TopicName string
	CreatedAt time.Time

	mu           sync.Mutex
	lastAccessed time.Time
	messageCount int
	buffer       *memory.ConversationBuffer
}

func newSession(id, topicName string, now time.Time) *Session {
	return &Session{
		ID:           id,
		TopicName:    topicName,
		CreatedAt:    now,
		lastAccessed: now,
		buffer:       memory.NewConversationBuffer(),
	}
}

// LastAccessed returns when the session was last used
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

// MessageCount returns the number of queries routed to the session
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// IncrementMessageCount bumps the query counter and returns the new value
func (s *Session) IncrementMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCount++
	return s.messageCount
}

// History returns the conversation memory in LangChainGo form, oldest first
func (s *Session) History(ctx context.Context) ([]llms.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.buffer.ChatHistory.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// Turns returns the conversation memory as typed turns, oldest first
func (s *Session) Turns(ctx context.Context) ([]Turn, error) {
	messages, err := s.History(ctx)
	if err != nil {
		return nil, err
	}

	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, Turn{
			Type:    string(msg.GetType()),
			Content: msg.GetContent(),
		})
	}
	return turns, nil
}

// Summary returns a point-in-time description of the session
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:           s.ID,
		TopicName:    s.TopicName,
		CreatedAt:    s.CreatedAt,
		LastAccessed: s.lastAccessed,
		MessageCount: s.messageCount,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastAccessed) {
		s.lastAccessed = now
	}
}

// addTurn appends both sides of a completed exchange to memory
func (s *Session) addTurn(ctx context.Context, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.buffer.ChatHistory.AddUserMessage(ctx, question); err != nil {
		return fmt.Errorf("failed to add user message to memory: %w", err)
	}
	if err := s.buffer.ChatHistory.AddAIMessage(ctx, answer); err != nil {
		return fmt.Errorf("failed to add AI message to memory: %w", err)
	}
	return nil
}
