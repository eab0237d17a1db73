package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yeaalexx/claude-code-ai-team/pkg/models"
)

// fakeClock is a manually advanced clock for cache tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// capturingLogger records events for assertion.
type capturingLogger struct {
	events []string
}

func (l *capturingLogger) LogEvent(eventType string, data map[string]any) error {
	l.events = append(l.events, eventType)
	return nil
}

func newTestStore(t *testing.T) MemoryStoreManager {
	t.Helper()
	return NewMemoryStoreManager(t.TempDir(), MemoryStoreConfig{})
}

func TestInitialize_CreatesSnapshotAndArchive(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStoreManager(dir, MemoryStoreConfig{})

	if err := store.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "memory.yaml")); err != nil {
		t.Errorf("expected snapshot file: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dir, "sessions")); err != nil || !info.IsDir() {
		t.Errorf("expected sessions archive directory: %v", err)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStoreManager(dir, MemoryStoreConfig{})

	if err := store.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.AddLearning("claude", "code", "slices share backing arrays after append", "", 0.9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second Initialize must not wipe existing data.
	if err := store.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	learnings, err := store.QueryLearnings("", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(learnings) != 1 {
		t.Errorf("expected 1 learning after re-initialize, got %d", len(learnings))
	}
}

func TestLoad_MissingFileYieldsFreshSnapshot(t *testing.T) {
	store := newTestStore(t)

	snapshot, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Version != models.SnapshotVersion {
		t.Errorf("expected version %d, got %d", models.SnapshotVersion, snapshot.Version)
	}
	if len(snapshot.Learnings) != 0 {
		t.Errorf("expected empty learnings, got %d", len(snapshot.Learnings))
	}
	if snapshot.Identity.Role == "" {
		t.Error("expected default identity role to be set")
	}
}

func TestAddLearning_SequentialIDs(t *testing.T) {
	store := newTestStore(t)

	id1, err := store.AddLearning("claude", "code", "defer runs in reverse declaration order", "", 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 != "L0001" {
		t.Errorf("expected L0001, got %s", id1)
	}

	id2, err := store.AddLearning("claude", "code", "maps are not safe for concurrent writes", "", 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id2 != "L0002" {
		t.Errorf("expected L0002, got %s", id2)
	}
}

func TestAddLearning_DuplicateReturnsExistingID(t *testing.T) {
	store := newTestStore(t)

	id1, err := store.AddLearning("claude", "code", "Channels block until both sides are ready", "", 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same content up to case and surrounding whitespace is a duplicate.
	id2, err := store.AddLearning("gpt", "code", "  channels block until both sides are ready  ", "", 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id2 != id1 {
		t.Errorf("expected duplicate to return %s, got %s", id1, id2)
	}

	learnings, err := store.QueryLearnings("", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(learnings) != 1 {
		t.Errorf("expected 1 learning, got %d", len(learnings))
	}
}

func TestAddLearning_DedupScopedByCategory(t *testing.T) {
	store := newTestStore(t)

	id1, err := store.AddLearning("claude", "code", "always close the response body", "", 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := store.AddLearning("claude", "testing", "always close the response body", "", 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 == id2 {
		t.Error("expected same content in another category to be a new learning")
	}
}

func TestAddLearning_DedupComparesLongPrefix(t *testing.T) {
	store := newTestStore(t)

	base := ""
	for i := 0; i < 10; i++ {
		base += "describe. " // 10 runes per repetition, 100 total
	}

	id1, err := store.AddLearning("claude", "code", base+"one", "", 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Identical first 80 runes, divergent tail: treated as the same learning.
	id2, err := store.AddLearning("claude", "code", base+"two", "", 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id2 != id1 {
		t.Errorf("expected shared prefix to dedup, got %s and %s", id1, id2)
	}
}

func TestAddLearning_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStoreManager(dir, MemoryStoreConfig{})

	if _, err := store.AddLearning("claude", "devops", "pin base image digests in CI", "infra", 0.9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened := NewMemoryStoreManager(dir, MemoryStoreConfig{})
	learnings, err := reopened.QueryLearnings("devops", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(learnings) != 1 {
		t.Fatalf("expected 1 learning after reopen, got %d", len(learnings))
	}
	if learnings[0].Project != "infra" {
		t.Errorf("unexpected project: %s", learnings[0].Project)
	}
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStoreManager(dir, MemoryStoreConfig{})

	if _, err := store.AddLearning("claude", "code", "this write goes through a temp file", "", 0.8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "memory.yaml.tmp")); !os.IsNotExist(err) {
		t.Error("expected temp file to be renamed away")
	}
	if _, err := os.Stat(filepath.Join(dir, "memory.yaml")); err != nil {
		t.Errorf("expected snapshot file: %v", err)
	}
}

func TestLoad_CorruptFileBackedUpAndReset(t *testing.T) {
	dir := t.TempDir()
	logger := &capturingLogger{}
	store := NewMemoryStoreManager(dir, MemoryStoreConfig{Events: logger})

	if err := os.WriteFile(filepath.Join(dir, "memory.yaml"), []byte("{not: [valid: yaml"), 0o600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	snapshot, err := store.Load()
	if err != nil {
		t.Fatalf("corruption must not surface as an error: %v", err)
	}
	if len(snapshot.Learnings) != 0 {
		t.Errorf("expected fresh snapshot, got %d learnings", len(snapshot.Learnings))
	}

	if _, err := os.Stat(filepath.Join(dir, "memory.backup.yaml")); err != nil {
		t.Errorf("expected corrupt file moved to backup: %v", err)
	}

	found := false
	for _, e := range logger.events {
		if e == "memory.corrupt_recovered" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected memory.corrupt_recovered event, got %v", logger.events)
	}
}

func TestLoad_NewerVersionRejected(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStoreManager(dir, MemoryStoreConfig{})

	data := []byte("version: 99\n")
	if err := os.WriteFile(filepath.Join(dir, "memory.yaml"), data, 0o600); err != nil {
		t.Fatalf("writing snapshot: %v", err)
	}

	if _, err := store.Load(); err == nil {
		t.Fatal("expected error for snapshot from a newer version")
	}
}

func TestLoad_CacheServedWithinTTL(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStoreManager(dir, MemoryStoreConfig{Clock: clock.Now})

	if _, err := store.AddLearning("claude", "code", "first learning establishing the cache", "", 0.8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Replace the file behind the store's back. Within the TTL the cached
	// snapshot must still be served.
	if err := os.WriteFile(filepath.Join(dir, "memory.yaml"), []byte("version: 1\n"), 0o600); err != nil {
		t.Fatalf("rewriting snapshot: %v", err)
	}

	clock.Advance(30 * time.Second)
	snapshot, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot.Learnings) != 1 {
		t.Errorf("expected cached snapshot with 1 learning, got %d", len(snapshot.Learnings))
	}

	// Past the TTL the store re-reads from disk and sees the replacement.
	clock.Advance(60 * time.Second)
	snapshot, err = store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot.Learnings) != 0 {
		t.Errorf("expected reloaded snapshot with 0 learnings, got %d", len(snapshot.Learnings))
	}
}

func TestQueryLearnings_OrderedByConfidenceThenRecency(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStoreManager(t.TempDir(), MemoryStoreConfig{Clock: clock.Now})

	addAt := func(content string, confidence float64) {
		t.Helper()
		clock.Advance(time.Minute)
		if _, err := store.AddLearning("claude", "code", content, "", confidence); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	addAt("older high-confidence entry about contexts", 0.9)
	addAt("low-confidence entry about channel buffering", 0.5)
	addAt("newer high-confidence entry about goroutines", 0.9)

	learnings, err := store.QueryLearnings("code", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(learnings) != 3 {
		t.Fatalf("expected 3 learnings, got %d", len(learnings))
	}
	if learnings[0].Content != "newer high-confidence entry about goroutines" {
		t.Errorf("expected newest high-confidence first, got %q", learnings[0].Content)
	}
	if learnings[1].Content != "older high-confidence entry about contexts" {
		t.Errorf("expected older high-confidence second, got %q", learnings[1].Content)
	}
	if learnings[2].Confidence != 0.5 {
		t.Errorf("expected low-confidence last, got %v", learnings[2].Confidence)
	}
}

func TestQueryLearnings_CategoryAll(t *testing.T) {
	store := newTestStore(t)

	store.AddLearning("claude", "code", "entry in the code category here", "", 0.8)
	store.AddLearning("claude", "testing", "entry in the testing category here", "", 0.8)

	for _, category := range []string{"", "all"} {
		learnings, err := store.QueryLearnings(category, "", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(learnings) != 2 {
			t.Errorf("category %q: expected 2 learnings, got %d", category, len(learnings))
		}
	}
}

func TestQueryLearnings_ProjectScoping(t *testing.T) {
	store := newTestStore(t)

	store.AddLearning("claude", "code", "general learning visible to every project", "", 0.8)
	store.AddLearning("claude", "code", "learning scoped to the alpha project", "alpha", 0.8)
	store.AddLearning("claude", "code", "learning scoped to the beta project", "beta", 0.8)

	learnings, err := store.QueryLearnings("", "alpha", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(learnings) != 2 {
		t.Fatalf("expected general plus alpha, got %d", len(learnings))
	}
	for _, l := range learnings {
		if l.Project == "beta" {
			t.Errorf("beta-scoped learning leaked into alpha query")
		}
	}

	// No project filter returns everything.
	all, err := store.QueryLearnings("", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 learnings without project filter, got %d", len(all))
	}
}

func TestQueryLearnings_Limit(t *testing.T) {
	store := newTestStore(t)

	store.AddLearning("claude", "code", "first of several similar entries one", "", 0.8)
	store.AddLearning("claude", "code", "second of several similar entries two", "", 0.8)
	store.AddLearning("claude", "code", "third of several similar entries three", "", 0.8)

	learnings, err := store.QueryLearnings("", "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(learnings) != 2 {
		t.Errorf("expected limit of 2, got %d", len(learnings))
	}
}

func TestAddCorrection_SequentialAndNeverDeduped(t *testing.T) {
	store := newTestStore(t)

	id1, err := store.AddCorrection("gpt", "maps are ordered", "map iteration order is random", "code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 != "C0001" {
		t.Errorf("expected C0001, got %s", id1)
	}

	// The identical correction is stored again.
	id2, err := store.AddCorrection("gpt", "maps are ordered", "map iteration order is random", "code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id2 != "C0002" {
		t.Errorf("expected C0002, got %s", id2)
	}
}

func TestGetCorrections_TailInChronologicalOrder(t *testing.T) {
	store := newTestStore(t)

	store.AddCorrection("gpt", "claim one", "fix one", "code")
	store.AddCorrection("gpt", "claim two", "fix two", "code")
	store.AddCorrection("gpt", "claim three", "fix three", "testing")

	corrections, err := store.GetCorrections("", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corrections) != 2 {
		t.Fatalf("expected 2 corrections, got %d", len(corrections))
	}
	if corrections[0].ID != "C0002" || corrections[1].ID != "C0003" {
		t.Errorf("expected the most recent tail, got %s, %s", corrections[0].ID, corrections[1].ID)
	}

	filtered, err := store.GetCorrections("testing", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Category != "testing" {
		t.Errorf("unexpected category filter result: %v", filtered)
	}
}

func TestUpdateProjectContext_PartialUpdate(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpdateProjectContext("alpha", "go, postgres", "payments service"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Empty tech stack keeps the stored value.
	if err := store.UpdateProjectContext("alpha", "", "payments and billing service"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, ok := snapshot.ProjectContexts["alpha"]
	if !ok {
		t.Fatal("expected alpha project context")
	}
	if ctx.TechStack != "go, postgres" {
		t.Errorf("tech stack overwritten: %s", ctx.TechStack)
	}
	if ctx.Summary != "payments and billing service" {
		t.Errorf("summary not updated: %s", ctx.Summary)
	}
}

func TestRecordCall_And_Stats(t *testing.T) {
	store := newTestStore(t)

	store.RecordCall("memory_query")
	store.RecordCall("memory_query")
	store.RecordCall("session_start")
	store.AddLearning("claude", "code", "stats should count this learning", "alpha", 0.8)
	store.AddCorrection("gpt", "wrong", "right correction", "code")

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalLearnings != 1 {
		t.Errorf("expected 1 learning, got %d", stats.TotalLearnings)
	}
	if stats.TotalCorrections != 1 {
		t.Errorf("expected 1 correction, got %d", stats.TotalCorrections)
	}
	if stats.Statistics.TotalCalls != 3 {
		t.Errorf("expected 3 calls, got %d", stats.Statistics.TotalCalls)
	}
	if stats.Statistics.CallsByTool["memory_query"] != 2 {
		t.Errorf("expected 2 memory_query calls, got %d", stats.Statistics.CallsByTool["memory_query"])
	}
	if stats.LearningsByCategory["code"] != 1 {
		t.Errorf("expected 1 code learning, got %d", stats.LearningsByCategory["code"])
	}
}

func TestBulkImport_CountsOnlyNewInserts(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.AddLearning("claude", "code", "slices share backing arrays after append", "", 0.8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := `- slices share backing arrays after append
- table-driven tests keep edge cases visible
short
* pin base image digests before deploy
`
	count, err := store.BulkImport(text, "claude", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// One duplicate and one too-short line are skipped.
	if count != 2 {
		t.Errorf("expected 2 new imports, got %d", count)
	}
}

func TestBulkImport_ClassifiesByKeyword(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.BulkImport("always mock the clock in time-based tests", "claude", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	learnings, err := store.QueryLearnings("testing", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(learnings) != 1 {
		t.Fatalf("expected 1 testing learning, got %d", len(learnings))
	}
	if learnings[0].Confidence != 0.75 {
		t.Errorf("expected reduced confidence 0.75, got %v", learnings[0].Confidence)
	}
}

func TestArchiveTranscript_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	transcript := &models.Transcript{
		Session: models.Session{
			ID:        "sess_abc123def456",
			Created:   time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
			Task:      "review the retry middleware",
			Status:    models.StatusConsensus,
			TurnCount: 4,
			History: []models.Turn{
				{Role: models.RoleUser, Content: "please review"},
				{Role: models.RoleAssistant, Content: "looks good\n[STATUS: AGREE]"},
			},
		},
		Ended: time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC),
	}

	if err := store.ArchiveTranscript(transcript); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetTranscript("sess_abc123def456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Task != "review the retry middleware" {
		t.Errorf("unexpected task: %s", got.Task)
	}
	if got.Status != models.StatusConsensus {
		t.Errorf("unexpected status: %s", got.Status)
	}
	if len(got.History) != 2 {
		t.Errorf("expected 2 turns, got %d", len(got.History))
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Statistics.SessionsCount != 1 {
		t.Errorf("expected sessions count 1, got %d", stats.Statistics.SessionsCount)
	}
}

func TestArchiveTranscript_EmptyIDRejected(t *testing.T) {
	store := newTestStore(t)

	if err := store.ArchiveTranscript(&models.Transcript{}); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestListTranscripts_NewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"sess_first", "sess_second", "sess_third"} {
		transcript := &models.Transcript{
			Session: models.Session{ID: id, Task: "task " + id, Status: models.StatusConsensus},
			Ended:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.ArchiveTranscript(transcript); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	transcripts, err := store.ListTranscripts(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transcripts) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(transcripts))
	}
	if transcripts[0].ID != "sess_third" || transcripts[1].ID != "sess_second" {
		t.Errorf("unexpected order: %s, %s", transcripts[0].ID, transcripts[1].ID)
	}
}

func TestListTranscripts_EmptyArchive(t *testing.T) {
	store := newTestStore(t)

	transcripts, err := store.ListTranscripts(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transcripts) != 0 {
		t.Errorf("expected no transcripts, got %d", len(transcripts))
	}
}

func TestGetTranscript_Missing(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetTranscript("sess_nope"); err == nil {
		t.Fatal("expected error for missing transcript")
	}
}

func TestLoad_ReturnsCopy(t *testing.T) {
	store := newTestStore(t)

	store.AddLearning("claude", "code", "callers must not share the cache state", "", 0.8)

	snapshot, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snapshot.Learnings[0].Content = "mutated by caller"
	snapshot.Statistics.CallsByTool["bogus"] = 99

	fresh, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.Learnings[0].Content == "mutated by caller" {
		t.Error("caller mutation leaked into the store")
	}
	if fresh.Statistics.CallsByTool["bogus"] != 0 {
		t.Error("caller map mutation leaked into the store")
	}
}
