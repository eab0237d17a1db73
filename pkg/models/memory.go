package models

import "time"

// SnapshotVersion is the current schema version of the durable memory
// snapshot. Snapshots with a newer version are rejected at load time.
const SnapshotVersion = 1

// Learning is a single distilled fact accumulated across collaborations.
// Learnings are immutable once created; duplicate inserts are suppressed
// by the store.
type Learning struct {
	ID         string    `yaml:"id"`
	Timestamp  time.Time `yaml:"timestamp"`
	Source     string    `yaml:"source"`
	Project    string    `yaml:"project,omitempty"`
	Category   string    `yaml:"category"`
	Content    string    `yaml:"content"`
	Confidence float64   `yaml:"confidence"`
}

// Correction records one agent correcting a claim made by the other.
// Corrections are append-only and never deduplicated.
type Correction struct {
	ID            string    `yaml:"id"`
	Timestamp     time.Time `yaml:"timestamp"`
	Corrector     string    `yaml:"corrector"`
	OriginalClaim string    `yaml:"original_claim"`
	Correction    string    `yaml:"correction"`
	Category      string    `yaml:"category"`
}

// ProjectContext holds per-project background injected into collaborations.
type ProjectContext struct {
	TechStack  string    `yaml:"tech_stack,omitempty"`
	Summary    string    `yaml:"summary,omitempty"`
	LastActive time.Time `yaml:"last_active"`
}

// Statistics are derived counters updated on every mutating store operation.
type Statistics struct {
	TotalCalls       int            `yaml:"total_calls"`
	CallsByTool      map[string]int `yaml:"calls_by_tool"`
	LearningsCount   int            `yaml:"learnings_count"`
	CorrectionsCount int            `yaml:"corrections_count"`
	SessionsCount    int            `yaml:"sessions_count"`
}

// Identity describes the assistant persona stored alongside its memory.
type Identity struct {
	Role  string `yaml:"role"`
	Style string `yaml:"style"`
}

// MemorySnapshot is the single unit of durable memory state. Every mutation
// loads the full snapshot, mutates it, and writes it back whole.
type MemorySnapshot struct {
	Version         int                       `yaml:"version"`
	Created         time.Time                 `yaml:"created"`
	LastUpdated     time.Time                 `yaml:"last_updated"`
	Identity        Identity                  `yaml:"identity"`
	Learnings       []Learning                `yaml:"learnings"`
	Corrections     []Correction              `yaml:"corrections"`
	ProjectContexts map[string]ProjectContext `yaml:"project_contexts"`
	Statistics      Statistics                `yaml:"statistics"`
}

// MemoryStats is an aggregate read-only view of the store.
type MemoryStats struct {
	TotalLearnings      int
	LearningsByCategory map[string]int
	TotalCorrections    int
	Projects            []string
	LastUpdated         time.Time
	Statistics          Statistics
}
