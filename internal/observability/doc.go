// Package observability provides event logging and metrics for the AI team
// server. Store and session lifecycle events are persisted as structured
// JSON Lines (JSONL), and metrics are derived on demand from the event log.
package observability
