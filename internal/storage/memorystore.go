package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yeaalexx/claude-code-ai-team/pkg/models"
	"gopkg.in/yaml.v3"
)

// MemoryStoreManager defines the interface for the durable memory layer:
// learnings, corrections, project contexts, and call statistics, persisted
// as a single versioned snapshot under the memory directory.
type MemoryStoreManager interface {
	// Initialize ensures the memory directory and session archive exist and
	// writes a fresh default snapshot if none is present. Safe to call
	// repeatedly.
	Initialize() error

	// Load returns the current snapshot, served from the in-process cache
	// when it is fresh. A missing file yields a fresh default snapshot; a
	// corrupt file is moved aside and replaced by a fresh default.
	Load() (*models.MemorySnapshot, error)

	// Save persists the snapshot atomically and refreshes the cache.
	Save(snapshot *models.MemorySnapshot) error

	// AddLearning inserts a learning unless an equivalent one already exists
	// in the same category, in which case the existing ID is returned.
	AddLearning(source, category, content, project string, confidence float64) (string, error)

	// AddCorrection appends a correction. Corrections are never deduplicated.
	AddCorrection(corrector, originalClaim, correction, category string) (string, error)

	// UpdateProjectContext upserts the named project entry. Empty fields
	// leave the stored value untouched; last_active is always refreshed.
	UpdateProjectContext(project, techStack, summary string) error

	// QueryLearnings filters by category and project and returns up to limit
	// results sorted by confidence, then recency. Learnings without a
	// project are visible in every project scope.
	QueryLearnings(category, project string, limit int) ([]models.Learning, error)

	// GetCorrections returns the most recent corrections, optionally
	// filtered by category.
	GetCorrections(category string, limit int) ([]models.Correction, error)

	// RecordCall increments the total and per-tool call counters.
	RecordCall(toolName string) error

	// Stats returns an aggregate view of the store.
	Stats() (*models.MemoryStats, error)

	// BulkImport parses newline-separated or bullet-list learnings,
	// classifies each line by keyword, and stores them with reduced
	// confidence. Returns the number of new (non-duplicate) inserts.
	BulkImport(text, source, project string) (int, error)

	// ArchiveTranscript writes an ended session's transcript to the archive
	// directory, one file per session, and bumps the session counter.
	ArchiveTranscript(transcript *models.Transcript) error

	// GetTranscript reads a single archived transcript by session ID.
	GetTranscript(id string) (*models.Transcript, error)

	// ListTranscripts returns archived transcripts ordered newest first,
	// limited to the given count.
	ListTranscripts(limit int) ([]models.Transcript, error)
}

// EventLogger is the minimal logging surface the store needs. It is
// satisfied by the observability event log adapter.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Snapshot and archive file names under the memory directory.
const (
	snapshotFile   = "memory.yaml"
	snapshotTmp    = "memory.yaml.tmp"
	snapshotBackup = "memory.backup.yaml"
	archiveDirName = "sessions"
)

// defaultCacheTTL is how long a loaded snapshot is served from cache.
const defaultCacheTTL = 60 * time.Second

// dedupPrefixLen is the number of leading characters of normalized learning
// content compared during deduplication. The prefix match is intentionally
// tolerant of minor trailing differences.
const dedupPrefixLen = 80

// MemoryStoreConfig carries optional dependencies for the memory store.
// Zero values select defaults.
type MemoryStoreConfig struct {
	// CacheTTL overrides the snapshot cache lifetime (default 60s).
	CacheTTL time.Duration
	// Clock supplies the current time; defaults to time.Now in UTC.
	Clock func() time.Time
	// Events receives store lifecycle events; nil disables logging.
	Events EventLogger
	// Identity overrides the persona written into a fresh snapshot.
	Identity models.Identity
}

type fileMemoryStore struct {
	memoryDir string
	cacheTTL  time.Duration
	now       func() time.Time
	events    EventLogger
	identity  models.Identity

	mu       sync.Mutex
	cache    *models.MemorySnapshot
	cachedAt time.Time
	cacheSet bool
}

// NewMemoryStoreManager creates a MemoryStoreManager rooted at the given
// memory directory.
func NewMemoryStoreManager(memoryDir string, cfg MemoryStoreConfig) MemoryStoreManager {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	identity := cfg.Identity
	if identity == (models.Identity{}) {
		identity = defaultIdentity()
	}
	return &fileMemoryStore{
		memoryDir: memoryDir,
		cacheTTL:  ttl,
		now:       now,
		events:    cfg.Events,
		identity:  identity,
	}
}

func defaultIdentity() models.Identity {
	return models.Identity{
		Role: "You are the reviewing agent in a two-agent collaboration team. " +
			"The primary agent executes code and manages files. You provide " +
			"independent analysis, code review, architecture advice, and " +
			"creative problem-solving. Your accumulated learnings from past " +
			"collaborations are injected into your context. Build on them.",
		Style: "Direct, concise, opinionated. Disagree with the primary agent " +
			"when you have strong reasons. Flag risks it might miss. Offer " +
			"alternatives.",
	}
}

func (s *fileMemoryStore) snapshotPath() string {
	return filepath.Join(s.memoryDir, snapshotFile)
}

func (s *fileMemoryStore) tmpPath() string {
	return filepath.Join(s.memoryDir, snapshotTmp)
}

func (s *fileMemoryStore) backupPath() string {
	return filepath.Join(s.memoryDir, snapshotBackup)
}

func (s *fileMemoryStore) archiveDir() string {
	return filepath.Join(s.memoryDir, archiveDirName)
}

// Initialize creates the memory and archive directories and seeds the
// snapshot file if it does not exist yet.
func (s *fileMemoryStore) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.archiveDir(), 0o755); err != nil {
		return fmt.Errorf("initializing memory store: creating directories: %w", err)
	}

	if _, err := os.Stat(s.snapshotPath()); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("initializing memory store: checking snapshot: %w", err)
	}

	snapshot := s.freshSnapshot()
	if err := s.writeSnapshotLocked(snapshot); err != nil {
		return fmt.Errorf("initializing memory store: %w", err)
	}
	return nil
}

// freshSnapshot builds the default empty snapshot.
func (s *fileMemoryStore) freshSnapshot() *models.MemorySnapshot {
	now := s.now()
	return &models.MemorySnapshot{
		Version:         models.SnapshotVersion,
		Created:         now,
		LastUpdated:     now,
		Identity:        s.identity,
		ProjectContexts: make(map[string]models.ProjectContext),
		Statistics: models.Statistics{
			CallsByTool: make(map[string]int),
		},
	}
}

// Load returns a copy of the current snapshot.
func (s *fileMemoryStore) Load() (*models.MemorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return cloneSnapshot(snapshot), nil
}

// loadLocked returns the cached snapshot if fresh, otherwise reads from
// disk. The caller must hold s.mu. The returned pointer is the cache entry;
// callers mutate it only as part of a load-mutate-save cycle under the lock.
func (s *fileMemoryStore) loadLocked() (*models.MemorySnapshot, error) {
	now := s.now()
	if s.cacheSet && now.Sub(s.cachedAt) < s.cacheTTL {
		return s.cache, nil
	}

	data, err := os.ReadFile(s.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			// No data yet. Serve a fresh snapshot without writing it.
			s.setCacheLocked(s.freshSnapshot())
			return s.cache, nil
		}
		return nil, fmt.Errorf("loading memory snapshot: %w", err)
	}

	var snapshot models.MemorySnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		// Corrupt snapshot: move it aside and start fresh. Never surfaced to
		// the caller.
		if renameErr := os.Rename(s.snapshotPath(), s.backupPath()); renameErr == nil {
			s.logEvent("memory.corrupt_recovered", map[string]any{
				"backup": s.backupPath(),
				"error":  err.Error(),
			})
		}
		s.setCacheLocked(s.freshSnapshot())
		return s.cache, nil
	}

	if snapshot.Version > models.SnapshotVersion {
		return nil, fmt.Errorf("loading memory snapshot: unsupported version %d (newest supported is %d)",
			snapshot.Version, models.SnapshotVersion)
	}
	if snapshot.ProjectContexts == nil {
		snapshot.ProjectContexts = make(map[string]models.ProjectContext)
	}
	if snapshot.Statistics.CallsByTool == nil {
		snapshot.Statistics.CallsByTool = make(map[string]int)
	}

	s.setCacheLocked(&snapshot)
	return s.cache, nil
}

func (s *fileMemoryStore) setCacheLocked(snapshot *models.MemorySnapshot) {
	s.cache = snapshot
	s.cachedAt = s.now()
	s.cacheSet = true
}

// Save persists the snapshot atomically and refreshes the cache.
func (s *fileMemoryStore) Save(snapshot *models.MemorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(snapshot)
}

func (s *fileMemoryStore) saveLocked(snapshot *models.MemorySnapshot) error {
	snapshot.LastUpdated = s.now()
	if err := s.writeSnapshotLocked(snapshot); err != nil {
		return err
	}
	s.setCacheLocked(snapshot)
	return nil
}

// writeSnapshotLocked serializes the snapshot to a temp file in the memory
// directory and renames it over the canonical path. The rename keeps the
// canonical file either fully old or fully new if the process dies mid-write.
func (s *fileMemoryStore) writeSnapshotLocked(snapshot *models.MemorySnapshot) error {
	if err := os.MkdirAll(s.memoryDir, 0o755); err != nil {
		return fmt.Errorf("writing memory snapshot: creating directory: %w", err)
	}

	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("writing memory snapshot: marshalling: %w", err)
	}
	if err := os.WriteFile(s.tmpPath(), data, 0o600); err != nil {
		return fmt.Errorf("writing memory snapshot: %w", err)
	}
	if err := os.Rename(s.tmpPath(), s.snapshotPath()); err != nil {
		return fmt.Errorf("writing memory snapshot: replacing file: %w", err)
	}
	return nil
}

// AddLearning inserts a learning, suppressing duplicates within a category.
func (s *fileMemoryStore) AddLearning(source, category, content, project string, confidence float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _, err := s.addLearningLocked(source, category, content, project, confidence)
	return id, err
}

// addLearningLocked performs the load-dedup-insert-save cycle. The second
// return value reports whether a new learning was inserted.
func (s *fileMemoryStore) addLearningLocked(source, category, content, project string, confidence float64) (string, bool, error) {
	snapshot, err := s.loadLocked()
	if err != nil {
		return "", false, fmt.Errorf("adding learning: %w", err)
	}

	normalized := dedupKey(content)
	for _, existing := range snapshot.Learnings {
		if existing.Category == category && dedupKey(existing.Content) == normalized {
			return existing.ID, false, nil
		}
	}

	id := fmt.Sprintf("L%04d", len(snapshot.Learnings)+1)
	snapshot.Learnings = append(snapshot.Learnings, models.Learning{
		ID:         id,
		Timestamp:  s.now(),
		Source:     source,
		Project:    project,
		Category:   category,
		Content:    strings.TrimSpace(content),
		Confidence: confidence,
	})
	snapshot.Statistics.LearningsCount = len(snapshot.Learnings)

	if err := s.saveLocked(snapshot); err != nil {
		return "", false, fmt.Errorf("adding learning: %w", err)
	}
	s.logEvent("learning.added", map[string]any{"id": id, "category": category, "source": source})
	return id, true, nil
}

// dedupKey normalizes learning content for duplicate detection: lowercased,
// trimmed, truncated to the first 80 runes.
func dedupKey(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	runes := []rune(normalized)
	if len(runes) > dedupPrefixLen {
		runes = runes[:dedupPrefixLen]
	}
	return string(runes)
}

// AddCorrection appends a correction entry.
func (s *fileMemoryStore) AddCorrection(corrector, originalClaim, correction, category string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.loadLocked()
	if err != nil {
		return "", fmt.Errorf("adding correction: %w", err)
	}

	id := fmt.Sprintf("C%04d", len(snapshot.Corrections)+1)
	snapshot.Corrections = append(snapshot.Corrections, models.Correction{
		ID:            id,
		Timestamp:     s.now(),
		Corrector:     corrector,
		OriginalClaim: strings.TrimSpace(originalClaim),
		Correction:    strings.TrimSpace(correction),
		Category:      category,
	})
	snapshot.Statistics.CorrectionsCount = len(snapshot.Corrections)

	if err := s.saveLocked(snapshot); err != nil {
		return "", fmt.Errorf("adding correction: %w", err)
	}
	s.logEvent("correction.added", map[string]any{"id": id, "corrector": corrector, "category": category})
	return id, nil
}

// UpdateProjectContext upserts a project entry, leaving unspecified fields
// untouched.
func (s *fileMemoryStore) UpdateProjectContext(project, techStack, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.loadLocked()
	if err != nil {
		return fmt.Errorf("updating project context: %w", err)
	}

	ctx := snapshot.ProjectContexts[project]
	if techStack != "" {
		ctx.TechStack = techStack
	}
	if summary != "" {
		ctx.Summary = summary
	}
	ctx.LastActive = s.now()
	snapshot.ProjectContexts[project] = ctx

	if err := s.saveLocked(snapshot); err != nil {
		return fmt.Errorf("updating project context: %w", err)
	}
	return nil
}

// QueryLearnings filters and ranks learnings. Confidence dominates the sort;
// timestamp breaks ties so newer entries rank first within a confidence band.
func (s *fileMemoryStore) QueryLearnings(category, project string, limit int) ([]models.Learning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.loadLocked()
	if err != nil {
		return nil, fmt.Errorf("querying learnings: %w", err)
	}

	var results []models.Learning
	for _, l := range snapshot.Learnings {
		if category != "" && category != "all" && l.Category != category {
			continue
		}
		// Learnings without a project are general and match every scope.
		if project != "" && l.Project != "" && l.Project != project {
			continue
		}
		results = append(results, l)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// GetCorrections returns the most recent corrections in storage order, which
// is chronological since corrections are append-only.
func (s *fileMemoryStore) GetCorrections(category string, limit int) ([]models.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.loadLocked()
	if err != nil {
		return nil, fmt.Errorf("getting corrections: %w", err)
	}

	var results []models.Correction
	for _, c := range snapshot.Corrections {
		if category != "" && c.Category != category {
			continue
		}
		results = append(results, c)
	}

	if limit > 0 && limit < len(results) {
		results = results[len(results)-limit:]
	}
	return results, nil
}

// RecordCall increments the call statistics for the given tool.
func (s *fileMemoryStore) RecordCall(toolName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.loadLocked()
	if err != nil {
		return fmt.Errorf("recording call: %w", err)
	}

	snapshot.Statistics.TotalCalls++
	if snapshot.Statistics.CallsByTool == nil {
		snapshot.Statistics.CallsByTool = make(map[string]int)
	}
	snapshot.Statistics.CallsByTool[toolName]++

	if err := s.saveLocked(snapshot); err != nil {
		return fmt.Errorf("recording call: %w", err)
	}
	return nil
}

// Stats returns an aggregate read-only view of the store.
func (s *fileMemoryStore) Stats() (*models.MemoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.loadLocked()
	if err != nil {
		return nil, fmt.Errorf("getting memory stats: %w", err)
	}

	byCategory := make(map[string]int)
	for _, l := range snapshot.Learnings {
		cat := l.Category
		if cat == "" {
			cat = "uncategorized"
		}
		byCategory[cat]++
	}

	projects := make([]string, 0, len(snapshot.ProjectContexts))
	for name := range snapshot.ProjectContexts {
		projects = append(projects, name)
	}
	sort.Strings(projects)

	stats := snapshot.Statistics
	stats.CallsByTool = make(map[string]int, len(snapshot.Statistics.CallsByTool))
	for k, v := range snapshot.Statistics.CallsByTool {
		stats.CallsByTool[k] = v
	}

	return &models.MemoryStats{
		TotalLearnings:      len(snapshot.Learnings),
		LearningsByCategory: byCategory,
		TotalCorrections:    len(snapshot.Corrections),
		Projects:            projects,
		LastUpdated:         snapshot.LastUpdated,
		Statistics:          stats,
	}, nil
}

// minImportLineLen is the shortest line accepted during bulk import.
const minImportLineLen = 15

// bulkImportConfidence marks bulk-imported learnings as less trusted than
// directly observed ones.
const bulkImportConfidence = 0.75

// BulkImport parses newline-separated learnings, classifying each line into
// a category by keyword heuristic.
func (s *fileMemoryStore) BulkImport(text, source, project string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		if len(line) < minImportLineLen {
			continue
		}

		category := DetectCategory(line)
		_, inserted, err := s.addLearningLocked(source, category, line, project, bulkImportConfidence)
		if err != nil {
			return count, fmt.Errorf("bulk import: %w", err)
		}
		if inserted {
			count++
		}
	}
	return count, nil
}

// ArchiveTranscript writes an ended session to the archive directory as a
// whole document and bumps the session counter in statistics.
func (s *fileMemoryStore) ArchiveTranscript(transcript *models.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if transcript.ID == "" {
		return fmt.Errorf("archiving transcript: session ID must not be empty")
	}

	if err := os.MkdirAll(s.archiveDir(), 0o755); err != nil {
		return fmt.Errorf("archiving transcript: creating archive directory: %w", err)
	}

	data, err := yaml.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("archiving transcript: marshalling: %w", err)
	}
	path := filepath.Join(s.archiveDir(), transcript.ID+".yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("archiving transcript: %w", err)
	}

	snapshot, err := s.loadLocked()
	if err != nil {
		return fmt.Errorf("archiving transcript: %w", err)
	}
	snapshot.Statistics.SessionsCount++
	if err := s.saveLocked(snapshot); err != nil {
		return fmt.Errorf("archiving transcript: %w", err)
	}

	s.logEvent("session.archived", map[string]any{"session_id": transcript.ID})
	return nil
}

// GetTranscript reads one archived session transcript.
func (s *fileMemoryStore) GetTranscript(id string) (*models.Transcript, error) {
	path := filepath.Join(s.archiveDir(), id+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("transcript %s not found", id)
		}
		return nil, fmt.Errorf("reading transcript %s: %w", id, err)
	}

	var transcript models.Transcript
	if err := yaml.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("parsing transcript %s: %w", id, err)
	}
	return &transcript, nil
}

// ListTranscripts returns archived transcripts, newest first. Unreadable
// entries are skipped.
func (s *fileMemoryStore) ListTranscripts(limit int) ([]models.Transcript, error) {
	entries, err := os.ReadDir(s.archiveDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}

	var transcripts []models.Transcript
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.archiveDir(), entry.Name()))
		if err != nil {
			continue
		}
		var transcript models.Transcript
		if err := yaml.Unmarshal(data, &transcript); err != nil {
			continue
		}
		transcripts = append(transcripts, transcript)
	}

	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].Ended.After(transcripts[j].Ended)
	})

	if limit > 0 && limit < len(transcripts) {
		transcripts = transcripts[:limit]
	}
	return transcripts, nil
}

func (s *fileMemoryStore) logEvent(eventType string, data map[string]any) {
	if s.events == nil {
		return
	}
	_ = s.events.LogEvent(eventType, data) // Logging is best-effort.
}

// cloneSnapshot deep-copies a snapshot so callers never share mutable state
// with the cache.
func cloneSnapshot(snapshot *models.MemorySnapshot) *models.MemorySnapshot {
	cp := *snapshot

	cp.Learnings = make([]models.Learning, len(snapshot.Learnings))
	copy(cp.Learnings, snapshot.Learnings)

	cp.Corrections = make([]models.Correction, len(snapshot.Corrections))
	copy(cp.Corrections, snapshot.Corrections)

	cp.ProjectContexts = make(map[string]models.ProjectContext, len(snapshot.ProjectContexts))
	for k, v := range snapshot.ProjectContexts {
		cp.ProjectContexts[k] = v
	}

	cp.Statistics.CallsByTool = make(map[string]int, len(snapshot.Statistics.CallsByTool))
	for k, v := range snapshot.Statistics.CallsByTool {
		cp.Statistics.CallsByTool[k] = v
	}
	return &cp
}
