package storage

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func genCategory(t *rapid.T) string {
	categories := []string{"architecture", "debugging", "devops", "security", "testing", "performance", "code"}
	return categories[rapid.IntRange(0, len(categories)-1).Draw(t, "categoryIdx")]
}

func genContent(t *rapid.T, label string) string {
	words := []string{"cache", "retry", "handler", "index", "schema", "worker", "buffer", "context"}
	n := rapid.IntRange(4, 12).Draw(t, label+"Len")
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words[rapid.IntRange(0, len(words)-1).Draw(t, fmt.Sprintf("%sWord%d", label, i))]
	}
	return strings.Join(parts, " ")
}

// Adding the same content twice in the same category never creates a second
// learning, whatever the source or confidence.
func TestAddLearning_IdempotentProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewMemoryStoreManager(t.TempDir(), MemoryStoreConfig{})

		category := genCategory(rt)
		content := genContent(rt, "content")

		id1, err := store.AddLearning("claude", category, content, "", 0.8)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		id2, err := store.AddLearning("gpt", category, content, "", 0.3)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if id1 != id2 {
			rt.Fatalf("duplicate insert produced new ID: %s vs %s", id1, id2)
		}

		learnings, err := store.QueryLearnings(category, "", 0)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(learnings) != 1 {
			rt.Fatalf("expected 1 learning, got %d", len(learnings))
		}
	})
}

// Query results are always sorted by confidence descending, and a limit is
// never exceeded.
func TestQueryLearnings_OrderingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := NewMemoryStoreManager(t.TempDir(), MemoryStoreConfig{})

		n := rapid.IntRange(1, 8).Draw(rt, "n")
		for i := 0; i < n; i++ {
			confidence := float64(rapid.IntRange(0, 100).Draw(rt, fmt.Sprintf("conf%d", i))) / 100
			content := fmt.Sprintf("%s entry number %d", genContent(rt, fmt.Sprintf("c%d", i)), i)
			if _, err := store.AddLearning("claude", "code", content, "", confidence); err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
		}

		limit := rapid.IntRange(1, 10).Draw(rt, "limit")
		learnings, err := store.QueryLearnings("code", "", limit)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(learnings) > limit {
			rt.Fatalf("limit %d exceeded: %d results", limit, len(learnings))
		}
		for i := 1; i < len(learnings); i++ {
			if learnings[i].Confidence > learnings[i-1].Confidence {
				rt.Fatalf("results not sorted by confidence at %d: %v > %v",
					i, learnings[i].Confidence, learnings[i-1].Confidence)
			}
		}
	})
}

// A snapshot survives a save/reload cycle through a fresh store instance.
func TestSnapshot_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir := t.TempDir()
		store := NewMemoryStoreManager(dir, MemoryStoreConfig{})

		n := rapid.IntRange(1, 6).Draw(rt, "n")
		for i := 0; i < n; i++ {
			content := fmt.Sprintf("%s distinct entry %d", genContent(rt, fmt.Sprintf("e%d", i)), i)
			if _, err := store.AddLearning("claude", genCategory(rt), content, "", 0.8); err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
		}

		before, err := store.Load()
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		reopened := NewMemoryStoreManager(dir, MemoryStoreConfig{})
		after, err := reopened.Load()
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		if len(after.Learnings) != len(before.Learnings) {
			rt.Fatalf("learning count changed across reload: %d vs %d",
				len(before.Learnings), len(after.Learnings))
		}
		for i := range before.Learnings {
			if after.Learnings[i].ID != before.Learnings[i].ID ||
				after.Learnings[i].Content != before.Learnings[i].Content ||
				after.Learnings[i].Category != before.Learnings[i].Category {
				rt.Fatalf("learning %d changed across reload", i)
			}
		}
	})
}
