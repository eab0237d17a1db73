package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/yeaalexx/claude-code-ai-team/pkg/models"
)

// Dashboard panel indices.
const (
	panelMemory = iota
	panelMetrics
	panelSessions
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	memoryData  *memorySnapshot
	metricsData *metricsSnapshot
	sessions    []sessionSnapshot

	// State.
	loading bool
	err     error
}

type memorySnapshot struct {
	byCategory  map[string]int
	learnings   int
	corrections int
	projects    int
}

type metricsSnapshot struct {
	sessionsStarted  int
	sessionsEnded    int
	learningsAdded   int
	correctionsAdded int
	eventCount       int
}

type sessionSnapshot struct {
	id     string
	task   string
	status string
	turns  int
	ended  string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	memory   *memorySnapshot
	metrics  *metricsSnapshot
	sessions []sessionSnapshot
	err      error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	statusConsensus    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusDisagreement = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusNeedsInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusActiveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelMemory,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.memoryData = msg.memory
		m.metricsData = msg.metrics
		m.sessions = msg.sessions
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" AI Team Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	memoryPanel := m.renderMemoryPanel()
	metricsPanel := m.renderMetricsPanel()
	sessionsPanel := m.renderSessionsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		memoryPanel = m.applyPanelStyle(panelMemory, memoryPanel, colWidth-4)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, colWidth-4)
		sessionsPanel = m.applyPanelStyle(panelSessions, sessionsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, memoryPanel, metricsPanel, sessionsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		memoryPanel = m.applyPanelStyle(panelMemory, memoryPanel, panelWidth)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		sessionsPanel = m.applyPanelStyle(panelSessions, sessionsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, memoryPanel, metricsPanel, sessionsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderMemoryPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Memory"))
	b.WriteString("\n")

	if m.memoryData == nil || m.memoryData.learnings == 0 {
		b.WriteString("  No learnings stored.")
		return b.String()
	}

	md := m.memoryData
	categories := make([]string, 0, len(md.byCategory))
	for cat := range md.byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", cat, md.byCategory[cat]))
	}

	b.WriteString(fmt.Sprintf("\n  Learnings:   %d\n", md.learnings))
	b.WriteString(fmt.Sprintf("  Corrections: %d\n", md.corrections))
	b.WriteString(fmt.Sprintf("  Projects:    %d", md.projects))

	return b.String()
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	lines := []struct {
		label string
		value int
	}{
		{"Events", md.eventCount},
		{"Started", md.sessionsStarted},
		{"Ended", md.sessionsEnded},
		{"Learnings", md.learningsAdded},
		{"Corrections", md.correctionsAdded},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m dashboardModel) renderSessionsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recent Sessions"))
	b.WriteString("\n")

	if len(m.sessions) == 0 {
		b.WriteString("  No archived sessions.")
		return b.String()
	}

	for _, s := range m.sessions {
		status := styleForSessionStatus(s.status).Render(s.status)
		b.WriteString(fmt.Sprintf("  %s %s (%d turns)\n", s.id, status, s.turns))
		b.WriteString(fmt.Sprintf("    %s\n", s.task))
	}

	b.WriteString(fmt.Sprintf("\n  Total shown: %d", len(m.sessions)))

	return b.String()
}

func styleForSessionStatus(status string) lipgloss.Style {
	switch status {
	case string(models.StatusConsensus):
		return statusConsensus
	case string(models.StatusPersistentDisagreement):
		return statusDisagreement
	case string(models.StatusNeedsInfo):
		return statusNeedsInfo
	case string(models.StatusActive):
		return statusActiveStyle
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	result := dataLoadedMsg{}

	// Load memory stats from Store.
	if Store != nil {
		stats, err := Store.Stats()
		if err != nil {
			result.err = fmt.Errorf("loading memory stats: %w", err)
			return result
		}
		result.memory = &memorySnapshot{
			byCategory:  stats.LearningsByCategory,
			learnings:   stats.TotalLearnings,
			corrections: stats.TotalCorrections,
			projects:    len(stats.Projects),
		}

		transcripts, err := Store.ListTranscripts(5)
		if err != nil {
			result.err = fmt.Errorf("loading sessions: %w", err)
			return result
		}
		result.sessions = make([]sessionSnapshot, 0, len(transcripts))
		for _, t := range transcripts {
			result.sessions = append(result.sessions, sessionSnapshot{
				id:     t.ID,
				task:   truncateTask(t.Task),
				status: string(t.Status),
				turns:  t.TurnCount,
				ended:  t.Ended.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	// Load metrics from MetricsCalc.
	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			sessionsStarted:  metrics.SessionsStarted,
			sessionsEnded:    metrics.SessionsEnded,
			learningsAdded:   metrics.LearningsAdded,
			correctionsAdded: metrics.CorrectionsAdded,
			eventCount:       metrics.EventCount,
		}
	}

	return result
}

func truncateTask(task string) string {
	const max = 48
	runes := []rune(task)
	if len(runes) <= max {
		return task
	}
	return string(runes[:max-3]) + "..."
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for memory and session activity",
	Long: `Launch an interactive terminal dashboard showing team memory contents,
recent event metrics, and the latest archived sessions.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("memory store not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
