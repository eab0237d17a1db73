package models

import "time"

// Turn roles. User turns carry the driving agent's messages, assistant turns
// carry the responding agent's replies.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SessionStatus is the consensus state of a negotiation session.
type SessionStatus string

const (
	StatusActive                 SessionStatus = "active"
	StatusConsensus              SessionStatus = "consensus"
	StatusPersistentDisagreement SessionStatus = "persistent_disagreement"
	StatusNeedsInfo              SessionStatus = "needs_info"

	// StatusError is returned by consensus detection for an unknown session.
	// It is never stored on a session.
	StatusError SessionStatus = "error"
)

// Turn is a single message in a session's history.
type Turn struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

// Session is the live state of a multi-turn negotiation between two agents.
// It exists only in memory while active; on end it is archived whole as a
// Transcript and never mutated again.
type Session struct {
	ID      string    `yaml:"id"`
	Created time.Time `yaml:"created"`
	Project string    `yaml:"project,omitempty"`
	Task    string    `yaml:"task"`
	Context string    `yaml:"context,omitempty"`
	History []Turn    `yaml:"history"`

	// TurnCount counts assistant turns only (one full request/response round).
	TurnCount int           `yaml:"turn_count"`
	Status    SessionStatus `yaml:"status"`

	ConsecutiveAgrees    int    `yaml:"consecutive_agrees"`
	ConsecutiveDisagrees int    `yaml:"consecutive_disagrees"`
	LastDisagreeTopic    string `yaml:"last_disagree_topic,omitempty"`
}

// Transcript is the finalized, immutable record of an ended session.
type Transcript struct {
	Session `yaml:",inline"`
	Ended   time.Time `yaml:"ended"`
}

// SessionSummary is the lightweight listing view of a live session. It never
// carries the full history.
type SessionSummary struct {
	ID        string        `yaml:"id"`
	Task      string        `yaml:"task"`
	Project   string        `yaml:"project,omitempty"`
	TurnCount int           `yaml:"turn_count"`
	Status    SessionStatus `yaml:"status"`
	Created   time.Time     `yaml:"created"`
}
