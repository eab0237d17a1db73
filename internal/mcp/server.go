// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the team memory store and negotiation sessions as MCP tools for AI coding
// assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yeaalexx/claude-code-ai-team/internal/marker"
	"github.com/yeaalexx/claude-code-ai-team/internal/session"
	"github.com/yeaalexx/claude-code-ai-team/internal/storage"
	"github.com/yeaalexx/claude-code-ai-team/pkg/models"
)

// Server wraps the memory store and session registry and exposes them as
// MCP tools.
type Server struct {
	server   *gomcp.Server
	store    storage.MemoryStoreManager
	registry *session.Registry
}

// NewServer creates a new MCP server over the given store and registry.
func NewServer(store storage.MemoryStoreManager, registry *session.Registry, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:    store,
		registry: registry,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "aiteam", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type addLearningInput struct {
	Category   string  `json:"category" jsonschema:"required,learning category (architecture, debugging, devops, security, testing, performance, code)"`
	Content    string  `json:"content" jsonschema:"required,the distilled fact to remember"`
	Source     string  `json:"source,omitempty" jsonschema:"which agent contributed this learning"`
	Project    string  `json:"project,omitempty" jsonschema:"project scope; empty for a general learning"`
	Confidence float64 `json:"confidence,omitempty" jsonschema:"confidence between 0 and 1; defaults to 0.8"`
}

type addLearningOutput struct {
	ID string `json:"id"`
}

type addCorrectionInput struct {
	Corrector     string `json:"corrector" jsonschema:"required,which agent issued the correction"`
	OriginalClaim string `json:"original_claim" jsonschema:"required,the claim being corrected"`
	Correction    string `json:"correction" jsonschema:"required,the corrected statement"`
	Category      string `json:"category,omitempty" jsonschema:"correction category; defaults to general"`
}

type addCorrectionOutput struct {
	ID string `json:"id"`
}

type queryLearningsInput struct {
	Category string `json:"category,omitempty" jsonschema:"filter by category; empty or all returns every category"`
	Project  string `json:"project,omitempty" jsonschema:"project scope; general learnings always match"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum results; defaults to 20"`
}

type learningOutput struct {
	ID         string  `json:"id"`
	Timestamp  string  `json:"timestamp"`
	Source     string  `json:"source,omitempty"`
	Project    string  `json:"project,omitempty"`
	Category   string  `json:"category"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

type queryLearningsOutput struct {
	Learnings []learningOutput `json:"learnings"`
	Count     int              `json:"count"`
}

type getCorrectionsInput struct {
	Category string `json:"category,omitempty" jsonschema:"filter by category"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum results; defaults to 10"`
}

type correctionOutput struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	Corrector     string `json:"corrector"`
	OriginalClaim string `json:"original_claim"`
	Correction    string `json:"correction"`
	Category      string `json:"category"`
}

type getCorrectionsOutput struct {
	Corrections []correctionOutput `json:"corrections"`
	Count       int                `json:"count"`
}

type memoryStatsInput struct{}

type memoryStatsOutput struct {
	TotalLearnings      int            `json:"total_learnings"`
	LearningsByCategory map[string]int `json:"learnings_by_category"`
	TotalCorrections    int            `json:"total_corrections"`
	Projects            []string       `json:"projects,omitempty"`
	TotalCalls          int            `json:"total_calls"`
	SessionsArchived    int            `json:"sessions_archived"`
	LastUpdated         string         `json:"last_updated"`
}

type memorySyncInput struct {
	Learnings string `json:"learnings" jsonschema:"required,newline-separated learnings or markdown list items"`
	Source    string `json:"source,omitempty" jsonschema:"which agent contributed them; defaults to claude"`
	Project   string `json:"project,omitempty" jsonschema:"project scope for the imported learnings"`
}

type memorySyncOutput struct {
	Stored int `json:"stored"`
}

type projectContextInput struct {
	Project   string `json:"project" jsonschema:"required,project name"`
	TechStack string `json:"tech_stack,omitempty" jsonschema:"technology stack summary"`
	Summary   string `json:"summary,omitempty" jsonschema:"short project summary"`
}

type projectContextOutput struct {
	Message string `json:"message"`
}

type sessionStartInput struct {
	Task    string `json:"task" jsonschema:"required,what the session is negotiating"`
	Project string `json:"project,omitempty" jsonschema:"project scope"`
	Context string `json:"context,omitempty" jsonschema:"extra background for the session"`
}

type sessionStartOutput struct {
	SessionID string `json:"session_id"`
}

type sessionTurnInput struct {
	SessionID string `json:"session_id" jsonschema:"required,the session identifier"`
	Role      string `json:"role" jsonschema:"required,user or assistant"`
	Content   string `json:"content" jsonschema:"required,the turn text"`
}

type sessionTurnOutput struct {
	Status          string   `json:"status"`
	StoredLearnings []string `json:"stored_learnings,omitempty"`
	CleanContent    string   `json:"clean_content,omitempty"`
}

type sessionStatusInput struct {
	SessionID string `json:"session_id" jsonschema:"required,the session identifier"`
}

type sessionStatusOutput struct {
	Summary string `json:"summary"`
}

type sessionEndInput struct {
	SessionID string `json:"session_id" jsonschema:"required,the session identifier"`
}

type sessionEndOutput struct {
	Status    string `json:"status"`
	TurnCount int    `json:"turn_count"`
	Ended     string `json:"ended"`
}

type sessionListInput struct{}

type sessionSummaryOutput struct {
	ID        string `json:"id"`
	Task      string `json:"task"`
	Project   string `json:"project,omitempty"`
	TurnCount int    `json:"turn_count"`
	Status    string `json:"status"`
	Created   string `json:"created"`
}

type sessionListOutput struct {
	Sessions []sessionSummaryOutput `json:"sessions"`
	Count    int                    `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "memory_add_learning",
		Description: "Store a distilled learning in persistent team memory. Duplicate learnings in the same category return the existing ID.",
	}, s.handleAddLearning)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "memory_add_correction",
		Description: "Record one agent correcting the other's claim. Corrections are append-only.",
	}, s.handleAddCorrection)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "memory_query",
		Description: "Query stored learnings filtered by category and project, ranked by confidence then recency.",
	}, s.handleQueryLearnings)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "memory_corrections",
		Description: "Get the most recent corrections, optionally filtered by category.",
	}, s.handleGetCorrections)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "memory_stats",
		Description: "Get an aggregate view of team memory: learning counts by category, corrections, projects, and call statistics.",
	}, s.handleMemoryStats)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "memory_sync",
		Description: "Bulk-import newline-separated learnings. Each line is classified by keyword and stored with reduced confidence.",
	}, s.handleMemorySync)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "project_context_update",
		Description: "Create or update a project's context entry (tech stack and summary).",
	}, s.handleProjectContext)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "session_start",
		Description: "Start a multi-turn negotiation session between the two agents. Returns the session ID.",
	}, s.handleSessionStart)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "session_turn",
		Description: "Record a conversation turn. Assistant turns update consensus state from [STATUS] markers and store any [LEARNING] blocks.",
	}, s.handleSessionTurn)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "session_status",
		Description: "Get a brief status summary for a live session.",
	}, s.handleSessionStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "session_end",
		Description: "End a session, archiving its full transcript to durable storage.",
	}, s.handleSessionEnd)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "session_list",
		Description: "List all live sessions (summary info only).",
	}, s.handleSessionList)
}

// recordCall tracks per-tool call statistics. Stats are bookkeeping; a
// failure here never fails the tool call itself.
func (s *Server) recordCall(toolName string) {
	_ = s.store.RecordCall(toolName)
}

// --- Tool handlers ---

func (s *Server) handleAddLearning(_ context.Context, _ *gomcp.CallToolRequest, input addLearningInput) (*gomcp.CallToolResult, addLearningOutput, error) {
	s.recordCall("memory_add_learning")

	if input.Category == "" || input.Content == "" {
		return errorResult("category and content are required"), addLearningOutput{}, nil
	}

	source := input.Source
	if source == "" {
		source = "assistant"
	}
	confidence := input.Confidence
	if confidence == 0 {
		confidence = 0.8
	}

	id, err := s.store.AddLearning(source, input.Category, input.Content, input.Project, confidence)
	if err != nil {
		return errorResult(fmt.Sprintf("adding learning: %s", err)), addLearningOutput{}, nil
	}
	return nil, addLearningOutput{ID: id}, nil
}

func (s *Server) handleAddCorrection(_ context.Context, _ *gomcp.CallToolRequest, input addCorrectionInput) (*gomcp.CallToolResult, addCorrectionOutput, error) {
	s.recordCall("memory_add_correction")

	if input.Corrector == "" || input.OriginalClaim == "" || input.Correction == "" {
		return errorResult("corrector, original_claim and correction are required"), addCorrectionOutput{}, nil
	}

	category := input.Category
	if category == "" {
		category = "general"
	}

	id, err := s.store.AddCorrection(input.Corrector, input.OriginalClaim, input.Correction, category)
	if err != nil {
		return errorResult(fmt.Sprintf("adding correction: %s", err)), addCorrectionOutput{}, nil
	}
	return nil, addCorrectionOutput{ID: id}, nil
}

func (s *Server) handleQueryLearnings(_ context.Context, _ *gomcp.CallToolRequest, input queryLearningsInput) (*gomcp.CallToolResult, queryLearningsOutput, error) {
	s.recordCall("memory_query")

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	learnings, err := s.store.QueryLearnings(input.Category, input.Project, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("querying learnings: %s", err)), queryLearningsOutput{}, nil
	}

	out := queryLearningsOutput{
		Learnings: make([]learningOutput, len(learnings)),
		Count:     len(learnings),
	}
	for i, l := range learnings {
		out.Learnings[i] = learningOutput{
			ID:         l.ID,
			Timestamp:  l.Timestamp.Format(time.RFC3339),
			Source:     l.Source,
			Project:    l.Project,
			Category:   l.Category,
			Content:    l.Content,
			Confidence: l.Confidence,
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetCorrections(_ context.Context, _ *gomcp.CallToolRequest, input getCorrectionsInput) (*gomcp.CallToolResult, getCorrectionsOutput, error) {
	s.recordCall("memory_corrections")

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	corrections, err := s.store.GetCorrections(input.Category, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("getting corrections: %s", err)), getCorrectionsOutput{}, nil
	}

	out := getCorrectionsOutput{
		Corrections: make([]correctionOutput, len(corrections)),
		Count:       len(corrections),
	}
	for i, c := range corrections {
		out.Corrections[i] = correctionOutput{
			ID:            c.ID,
			Timestamp:     c.Timestamp.Format(time.RFC3339),
			Corrector:     c.Corrector,
			OriginalClaim: c.OriginalClaim,
			Correction:    c.Correction,
			Category:      c.Category,
		}
	}
	return nil, out, nil
}

func (s *Server) handleMemoryStats(_ context.Context, _ *gomcp.CallToolRequest, _ memoryStatsInput) (*gomcp.CallToolResult, memoryStatsOutput, error) {
	s.recordCall("memory_stats")

	stats, err := s.store.Stats()
	if err != nil {
		return errorResult(fmt.Sprintf("getting memory stats: %s", err)), memoryStatsOutput{}, nil
	}

	return nil, memoryStatsOutput{
		TotalLearnings:      stats.TotalLearnings,
		LearningsByCategory: stats.LearningsByCategory,
		TotalCorrections:    stats.TotalCorrections,
		Projects:            stats.Projects,
		TotalCalls:          stats.Statistics.TotalCalls,
		SessionsArchived:    stats.Statistics.SessionsCount,
		LastUpdated:         stats.LastUpdated.Format(time.RFC3339),
	}, nil
}

func (s *Server) handleMemorySync(_ context.Context, _ *gomcp.CallToolRequest, input memorySyncInput) (*gomcp.CallToolResult, memorySyncOutput, error) {
	s.recordCall("memory_sync")

	if input.Learnings == "" {
		return errorResult("learnings text is required"), memorySyncOutput{}, nil
	}

	source := input.Source
	if source == "" {
		source = "claude"
	}

	count, err := s.store.BulkImport(input.Learnings, source, input.Project)
	if err != nil {
		return errorResult(fmt.Sprintf("importing learnings: %s", err)), memorySyncOutput{}, nil
	}
	return nil, memorySyncOutput{Stored: count}, nil
}

func (s *Server) handleProjectContext(_ context.Context, _ *gomcp.CallToolRequest, input projectContextInput) (*gomcp.CallToolResult, projectContextOutput, error) {
	s.recordCall("project_context_update")

	if input.Project == "" {
		return errorResult("project is required"), projectContextOutput{}, nil
	}

	if err := s.store.UpdateProjectContext(input.Project, input.TechStack, input.Summary); err != nil {
		return errorResult(fmt.Sprintf("updating project context: %s", err)), projectContextOutput{}, nil
	}
	return nil, projectContextOutput{
		Message: fmt.Sprintf("project context for %s updated", input.Project),
	}, nil
}

func (s *Server) handleSessionStart(_ context.Context, _ *gomcp.CallToolRequest, input sessionStartInput) (*gomcp.CallToolResult, sessionStartOutput, error) {
	s.recordCall("session_start")

	if input.Task == "" {
		return errorResult("task is required"), sessionStartOutput{}, nil
	}

	id := s.registry.CreateSession(input.Task, input.Project, input.Context)
	return nil, sessionStartOutput{SessionID: id}, nil
}

func (s *Server) handleSessionTurn(_ context.Context, _ *gomcp.CallToolRequest, input sessionTurnInput) (*gomcp.CallToolResult, sessionTurnOutput, error) {
	s.recordCall("session_turn")

	if input.SessionID == "" || input.Content == "" {
		return errorResult("session_id and content are required"), sessionTurnOutput{}, nil
	}
	if input.Role != models.RoleUser && input.Role != models.RoleAssistant {
		return errorResult(fmt.Sprintf("invalid role %q: must be user or assistant", input.Role)), sessionTurnOutput{}, nil
	}

	if err := s.registry.AddTurn(input.SessionID, input.Role, input.Content); err != nil {
		return errorResult(fmt.Sprintf("recording turn: %s", err)), sessionTurnOutput{}, nil
	}

	out := sessionTurnOutput{}
	if input.Role == models.RoleAssistant {
		status := s.registry.DetectConsensus(input.SessionID, input.Content)
		out.Status = string(status)

		// Extracted learnings inherit the session's project scope so facts
		// learned in one project do not surface in every other project.
		project := ""
		if live, ok := s.registry.GetSession(input.SessionID); ok {
			project = live.Project
		}

		// Persist any learning blocks the assistant emitted inline.
		for _, l := range marker.ExtractLearnings(input.Content) {
			id, err := s.store.AddLearning("assistant", l.Category, l.Content, project, 0.8)
			if err != nil {
				return errorResult(fmt.Sprintf("storing extracted learning: %s", err)), sessionTurnOutput{}, nil
			}
			out.StoredLearnings = append(out.StoredLearnings, id)
		}

		clean := marker.StripLearningBlocks(input.Content)
		out.CleanContent = marker.StripStatusLine(clean)
	} else {
		if live, ok := s.registry.GetSession(input.SessionID); ok {
			out.Status = string(live.Status)
		}
	}

	return nil, out, nil
}

func (s *Server) handleSessionStatus(_ context.Context, _ *gomcp.CallToolRequest, input sessionStatusInput) (*gomcp.CallToolResult, sessionStatusOutput, error) {
	s.recordCall("session_status")

	if input.SessionID == "" {
		return errorResult("session_id is required"), sessionStatusOutput{}, nil
	}

	summary := s.registry.GetSessionSummary(input.SessionID)
	if summary == "" {
		return errorResult(fmt.Sprintf("session %s not found", input.SessionID)), sessionStatusOutput{}, nil
	}
	return nil, sessionStatusOutput{Summary: summary}, nil
}

func (s *Server) handleSessionEnd(_ context.Context, _ *gomcp.CallToolRequest, input sessionEndInput) (*gomcp.CallToolResult, sessionEndOutput, error) {
	s.recordCall("session_end")

	if input.SessionID == "" {
		return errorResult("session_id is required"), sessionEndOutput{}, nil
	}

	transcript, err := s.registry.EndSession(input.SessionID)
	if err != nil {
		return errorResult(fmt.Sprintf("ending session: %s", err)), sessionEndOutput{}, nil
	}
	if transcript == nil {
		return errorResult(fmt.Sprintf("session %s not found", input.SessionID)), sessionEndOutput{}, nil
	}

	return nil, sessionEndOutput{
		Status:    string(transcript.Status),
		TurnCount: transcript.TurnCount,
		Ended:     transcript.Ended.Format(time.RFC3339),
	}, nil
}

func (s *Server) handleSessionList(_ context.Context, _ *gomcp.CallToolRequest, _ sessionListInput) (*gomcp.CallToolResult, sessionListOutput, error) {
	s.recordCall("session_list")

	summaries := s.registry.ListSessions()
	out := sessionListOutput{
		Sessions: make([]sessionSummaryOutput, len(summaries)),
		Count:    len(summaries),
	}
	for i, sum := range summaries {
		out.Sessions[i] = sessionSummaryOutput{
			ID:        sum.ID,
			Task:      sum.Task,
			Project:   sum.Project,
			TurnCount: sum.TurnCount,
			Status:    string(sum.Status),
			Created:   sum.Created.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
