package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/buddy-voice/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Manager owns every live conversation session.
// A single lock guards the session map; each Session guards its own state.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	transcripts Store
	now         func() time.Time
	log         logrus.FieldLogger
}

// Option configures a Manager
type Option func(*Manager)

// WithTranscripts archives every recorded turn to store
func WithTranscripts(store Store) Option {
	return func(m *Manager) { m.transcripts = store }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session with a fresh id
func (m *Manager) Create(topicName string) *Session {
	if topicName == "" {
		topicName = models.DefaultTopicName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	for _, taken := m.sessions[id]; taken; _, taken = m.sessions[id] {
		id = uuid.NewString()
	}

	session := newSession(id, topicName, m.now())
	m.sessions[id] = session

	m.log.WithFields(logrus.Fields{
		"session_id": id,
		"topic":      topicName,
	}).Info("Created conversation session")

	return session
}

// Get returns a live session and marks it as accessed
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	session.touch(m.now())
	return session, nil
}

// Delete removes a session. It reports whether the session existed.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return false
	}
	delete(m.sessions, sessionID)

	m.log.WithField("session_id", sessionID).Info("Cleared conversation session")
	return true
}

// List summarizes every live session, in no particular order
func (m *Manager) List() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]Summary, 0, len(m.sessions))
	for _, session := range m.sessions {
		summaries = append(summaries, session.Summary())
	}
	return summaries
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle removes sessions idle for longer than maxAge and returns how many went
func (m *Manager) EvictIdle(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, session := range m.sessions {
		if now.Sub(session.LastAccessed()) > maxAge {
			delete(m.sessions, id)
			removed++
			m.log.WithField("session_id", id).Info("Evicted idle session")
		}
	}
	return removed
}

// RecordTurn appends a completed exchange to the session memory and archives it.
// Archive failures are logged, never returned.
func (m *Manager) RecordTurn(ctx context.Context, session *Session, question, answer string) error {
	if err := session.addTurn(ctx, question, answer); err != nil {
		return err
	}
	session.touch(m.now())

	if m.transcripts == nil {
		return nil
	}

	now := m.now()
	err := m.transcripts.SaveMessages(ctx, session.ID, session.TopicName,
		Message{Role: "user", Content: question, Timestamp: now},
		Message{Role: "assistant", Content: answer, Timestamp: now},
	)
	if err != nil {
		m.log.WithError(err).WithField("session_id", session.ID).Warn("Failed to archive transcript turn")
	}
	return nil
}

// Transcript returns the archived messages of a session, live or not
func (m *Manager) Transcript(ctx context.Context, sessionID string) ([]Message, error) {
	if m.transcripts == nil {
		return nil, fmt.Errorf("%w: transcript archive is disabled", models.ErrConfiguration)
	}

	messages, err := m.transcripts.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrCollaborator, err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("transcript %s: %w", sessionID, models.ErrNotFound)
	}
	return messages, nil
}

// CheckArchive reports whether a transcript archive is configured and, when the
// store supports it, whether it answers a ping
func (m *Manager) CheckArchive(ctx context.Context) (bool, error) {
	if m.transcripts == nil {
		return false, nil
	}
	if p, ok := m.transcripts.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return true, fmt.Errorf("%w: %w", models.ErrCollaborator, err)
		}
	}
	return true, nil
}
