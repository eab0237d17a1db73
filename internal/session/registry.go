// Package session manages the lifecycle and consensus state of live
// negotiation sessions between two cooperating agents. Sessions live only in
// memory while active; ending a session archives its transcript through the
// memory store.
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yeaalexx/claude-code-ai-team/internal/marker"
	"github.com/yeaalexx/claude-code-ai-team/pkg/models"
)

// ErrSessionNotFound is returned when a turn is recorded against a session
// that is not live. Unlike lookups, this indicates a caller bug.
var ErrSessionNotFound = errors.New("session not found")

// TranscriptArchiver persists ended sessions durably. Satisfied by the
// memory store.
type TranscriptArchiver interface {
	ArchiveTranscript(transcript *models.Transcript) error
}

// EventLogger receives session lifecycle events; nil disables logging.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Consensus hysteresis thresholds. Two consecutive agreements are required
// before declaring consensus so a single agreeable-sounding turn does not
// end the negotiation prematurely. Three consecutive disagreements escalate
// only when the topic is stable; a shifting topic is normal iteration.
const (
	consensusAgreeThreshold     = 2
	persistentDisagreeThreshold = 3
)

// taskSummaryLen caps the task text included in session listings.
const taskSummaryLen = 100

// Config carries optional dependencies for the registry. Zero values select
// defaults.
type Config struct {
	// Clock supplies the current time; defaults to time.Now in UTC.
	Clock func() time.Time
	// NewID generates session identifiers; defaults to "sess_" plus twelve
	// hex characters of a random UUID.
	NewID func() string
	// Events receives lifecycle events; nil disables logging.
	Events EventLogger
}

// Registry owns all live sessions, keyed by session ID.
type Registry struct {
	archiver TranscriptArchiver
	now      func() time.Time
	newID    func() string
	events   EventLogger

	mu       sync.Mutex
	sessions map[string]*models.Session
}

// NewRegistry creates a session registry that archives ended sessions via
// the given archiver.
func NewRegistry(archiver TranscriptArchiver, cfg Config) *Registry {
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := cfg.NewID
	if newID == nil {
		newID = defaultSessionID
	}
	return &Registry{
		archiver: archiver,
		now:      now,
		newID:    newID,
		events:   cfg.Events,
		sessions: make(map[string]*models.Session),
	}
}

func defaultSessionID() string {
	u := uuid.New()
	return "sess_" + hex.EncodeToString(u[:])[:12]
}

// CreateSession starts a new negotiation session and returns its ID.
func (r *Registry) CreateSession(task, project, context string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	r.sessions[id] = &models.Session{
		ID:      id,
		Created: r.now(),
		Project: project,
		Task:    task,
		Context: context,
		Status:  models.StatusActive,
	}

	r.logEvent("session.created", map[string]any{"session_id": id, "project": project})
	return id
}

// GetSession returns a copy of the named live session. Absence is a normal
// outcome reported through the boolean.
func (r *Registry) GetSession(id string) (*models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	cp := copySession(s)
	return &cp, true
}

// AddTurn appends a turn to a session's history. Assistant turns increment
// the turn count; user turns do not. Recording a turn against a missing
// session is a caller error.
func (r *Registry) AddTurn(id, role, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("adding turn to %s: %w", id, ErrSessionNotFound)
	}

	s.History = append(s.History, models.Turn{Role: role, Content: content})
	if role == models.RoleAssistant {
		s.TurnCount++
	}
	return nil
}

// GetHistory returns a copy of the session's turn list, or an empty slice if
// the session is not live.
func (r *Registry) GetHistory(id string) []models.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	history := make([]models.Turn, len(s.History))
	copy(history, s.History)
	return history
}

// DetectConsensus scans the latest assistant text for a status marker and
// advances the session's consensus state. Text without a marker leaves the
// state unchanged. An unknown session yields StatusError without mutating
// anything.
func (r *Registry) DetectConsensus(id, latestAssistantText string) models.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return models.StatusError
	}

	m, found := marker.ParseStatus(latestAssistantText)
	if !found {
		return s.Status
	}

	switch m.Kind {
	case marker.Agree:
		s.ConsecutiveAgrees++
		s.ConsecutiveDisagrees = 0
		if s.ConsecutiveAgrees >= consensusAgreeThreshold {
			s.Status = models.StatusConsensus
		} else {
			s.Status = models.StatusActive
		}

	case marker.Disagree:
		s.ConsecutiveAgrees = 0
		s.ConsecutiveDisagrees++
		topic := m.Reason
		// An empty topic matches the previous one: no stated reason is read
		// as the same root disagreement.
		if s.ConsecutiveDisagrees >= persistentDisagreeThreshold &&
			(topic == "" || topic == s.LastDisagreeTopic) {
			s.Status = models.StatusPersistentDisagreement
		} else {
			s.Status = models.StatusActive
		}
		s.LastDisagreeTopic = topic

	case marker.Partial, marker.Proposal:
		s.ConsecutiveAgrees = 0
		s.ConsecutiveDisagrees = 0
		s.Status = models.StatusActive

	case marker.NeedInfo:
		s.Status = models.StatusNeedsInfo
	}

	return s.Status
}

// EndSession removes a session from the registry, archives its transcript,
// and returns the finalized record. A session that is not live yields
// (nil, nil). Archive failures propagate; the session stays removed.
func (r *Registry) EndSession(id string) (*models.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	delete(r.sessions, id)

	transcript := &models.Transcript{
		Session: copySession(s),
		Ended:   r.now(),
	}

	if r.archiver != nil {
		if err := r.archiver.ArchiveTranscript(transcript); err != nil {
			return nil, fmt.Errorf("ending session %s: %w", id, err)
		}
	}

	r.logEvent("session.ended", map[string]any{
		"session_id": id,
		"status":     string(transcript.Status),
		"turns":      transcript.TurnCount,
	})
	return transcript, nil
}

// ListSessions returns lightweight summaries of all live sessions. Full
// histories are never exposed in listings.
func (r *Registry) ListSessions() []models.SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summaries := make([]models.SessionSummary, 0, len(r.sessions))
	for _, s := range r.sessions {
		summaries = append(summaries, models.SessionSummary{
			ID:        s.ID,
			Task:      truncate(s.Task, taskSummaryLen),
			Project:   s.Project,
			TurnCount: s.TurnCount,
			Status:    s.Status,
			Created:   s.Created,
		})
	}
	return summaries
}

// GetSessionSummary returns a short human-readable status text for a
// session, or the empty string if it is not live.
func (r *Registry) GetSessionSummary(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ""
	}

	summary := fmt.Sprintf("Collaboration session on: %s\n", s.Task)
	summary += fmt.Sprintf("Status: %s, Turn: %d\n", s.Status, s.TurnCount)
	if s.Project != "" {
		summary += fmt.Sprintf("Project: %s\n", s.Project)
	}
	return summary
}

func (r *Registry) logEvent(eventType string, data map[string]any) {
	if r.events == nil {
		return
	}
	_ = r.events.LogEvent(eventType, data) // Logging is best-effort.
}

// copySession returns a value copy with its own history slice.
func copySession(s *models.Session) models.Session {
	cp := *s
	cp.History = make([]models.Turn, len(s.History))
	copy(cp.History, s.History)
	return cp
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
