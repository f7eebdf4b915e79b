package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/avvvet/buddy-voice/internal/memory"
	"github.com/avvvet/buddy-voice/internal/models"
)

// SessionService backs the conversation admin endpoints
type SessionService struct {
	sessions *memory.Manager
}

func NewSessionService(sessions *memory.Manager) *SessionService {
	return &SessionService{sessions: sessions}
}

// Clear deletes a live session
func (s *SessionService) Clear(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session_id is required", models.ErrValidation)
	}
	if !s.sessions.Delete(sessionID) {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}
	return nil
}

// History returns the chat memory of a live session
func (s *SessionService) History(ctx context.Context, sessionID string) (*models.SessionHistory, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", models.ErrValidation)
	}

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	turns, err := session.Turns(ctx)
	if err != nil {
		return nil, err
	}

	history := make([]models.HistoryMessage, 0, len(turns))
	for _, turn := range turns {
		history = append(history, models.HistoryMessage{Type: turn.Type, Content: turn.Content})
	}

	return &models.SessionHistory{
		SessionID:    session.ID,
		ChatHistory:  history,
		CreatedAt:    session.CreatedAt,
		LastAccessed: session.LastAccessed(),
	}, nil
}

// List summarizes live sessions, oldest first
func (s *SessionService) List() []models.SessionInfo {
	summaries := s.sessions.List()
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})

	infos := make([]models.SessionInfo, 0, len(summaries))
	for _, summary := range summaries {
		infos = append(infos, models.SessionInfo{
			SessionID:    summary.ID,
			TopicName:    summary.TopicName,
			CreatedAt:    summary.CreatedAt,
			LastAccessed: summary.LastAccessed,
			MessageCount: summary.MessageCount,
		})
	}
	return infos
}

// Count returns the number of live sessions
func (s *SessionService) Count() int {
	return s.sessions.Count()
}

// Archive status values reported by ArchiveStatus
const (
	ArchiveDisabled    = "disabled"
	ArchiveOK          = "ok"
	ArchiveUnavailable = "unavailable"
)

// ArchiveStatus checks the transcript archive
func (s *SessionService) ArchiveStatus(ctx context.Context) string {
	enabled, err := s.sessions.CheckArchive(ctx)
	switch {
	case !enabled:
		return ArchiveDisabled
	case err != nil:
		return ArchiveUnavailable
	default:
		return ArchiveOK
	}
}

// New starts an empty session
func (s *SessionService) New(topicName string) models.SessionInfo {
	session := s.sessions.Create(strings.TrimSpace(topicName))
	return models.SessionInfo{
		SessionID:    session.ID,
		TopicName:    session.TopicName,
		CreatedAt:    session.CreatedAt,
		LastAccessed: session.LastAccessed(),
	}
}

// Reset drops oldID if it is live and starts a new session in its place
func (s *SessionService) Reset(oldID, topicName string) models.SessionReset {
	if oldID != "" {
		s.sessions.Delete(oldID)
	}

	session := s.sessions.Create(strings.TrimSpace(topicName))
	return models.SessionReset{
		OldSessionID: oldID,
		NewSessionID: session.ID,
		TopicName:    session.TopicName,
		CreatedAt:    session.CreatedAt,
	}
}

// Transcript returns the archived messages of a session
func (s *SessionService) Transcript(ctx context.Context, sessionID string) ([]memory.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", models.ErrValidation)
	}
	return s.sessions.Transcript(ctx, sessionID)
}
