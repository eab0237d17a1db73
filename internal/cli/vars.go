// Package cli implements the aiteam command-line interface. Service
// dependencies are wired into package-level variables during app
// initialization.
package cli

import (
	"github.com/yeaalexx/claude-code-ai-team/internal/observability"
	"github.com/yeaalexx/claude-code-ai-team/internal/session"
	"github.com/yeaalexx/claude-code-ai-team/internal/storage"
)

// BasePath is the root directory for all aiteam data.
var BasePath string

// Store is the durable memory store, set during app initialization.
var Store storage.MemoryStoreManager

// Registry holds live negotiation sessions, set during app initialization.
var Registry *session.Registry

// EventLog receives lifecycle events; may be nil if observability is disabled.
var EventLog observability.EventLog

// MetricsCalc derives metrics from the event log; may be nil.
var MetricsCalc observability.MetricsCalculator

// QueryLimit and CorrectionsLimit are the configured default result limits,
// applied when the corresponding flag is not set explicitly.
var (
	QueryLimit       int
	CorrectionsLimit int
)
