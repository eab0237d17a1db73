package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	SessionsStarted      int            `json:"sessions_started"`
	SessionsEnded        int            `json:"sessions_ended"`
	SessionsByOutcome    map[string]int `json:"sessions_by_outcome"`
	LearningsAdded       int            `json:"learnings_added"`
	CorrectionsAdded     int            `json:"corrections_added"`
	CorruptionRecoveries int            `json:"corruption_recoveries"`
	EventCount           int            `json:"event_count"`
	OldestEvent          *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent          *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		SessionsByOutcome: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "session.created":
			m.SessionsStarted++
		case "session.ended":
			m.SessionsEnded++
			if status, ok := event.Data["status"].(string); ok {
				m.SessionsByOutcome[status]++
			}
		case "learning.added":
			m.LearningsAdded++
		case "correction.added":
			m.CorrectionsAdded++
		case "memory.corrupt_recovered":
			m.CorruptionRecoveries++
		}
	}

	return m, nil
}
