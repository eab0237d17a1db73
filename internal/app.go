// Package internal provides the App struct that wires all components of the
// AI team server together and initializes the CLI layer.
package internal

import (
	"os"
	"path/filepath"
	"time"

	"github.com/yeaalexx/claude-code-ai-team/internal/cli"
	"github.com/yeaalexx/claude-code-ai-team/internal/core"
	"github.com/yeaalexx/claude-code-ai-team/internal/observability"
	"github.com/yeaalexx/claude-code-ai-team/internal/session"
	"github.com/yeaalexx/claude-code-ai-team/internal/storage"
	"github.com/yeaalexx/claude-code-ai-team/pkg/models"
)

// App holds all service dependencies for the AI team server.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	Store storage.MemoryStoreManager

	// Live sessions
	Registry *session.Registry

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components of the AI team server. basePath is
// the root directory where all data is stored (typically the directory
// containing .aiteamconfig).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	globalCfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		// Use defaults if the config file is unreadable.
		globalCfg = &models.GlobalConfig{
			MemoryDir:        "memory",
			CacheTTLSeconds:  60,
			QueryLimit:       20,
			CorrectionsLimit: 10,
		}
	}

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".aiteam_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if the log can't be created.
		app.EventLog = nil
	}
	var evtAdapter *eventLogAdapter
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
		evtAdapter = &eventLogAdapter{log: app.EventLog}
	}

	// --- Storage layer ---
	memoryDir := filepath.Join(basePath, globalCfg.MemoryDir)
	storeCfg := storage.MemoryStoreConfig{
		CacheTTL: time.Duration(globalCfg.CacheTTLSeconds) * time.Second,
		Identity: models.Identity{
			Role:  globalCfg.IdentityRole,
			Style: globalCfg.IdentityStyle,
		},
	}
	if evtAdapter != nil {
		storeCfg.Events = evtAdapter
	}
	app.Store = storage.NewMemoryStoreManager(memoryDir, storeCfg)
	if err := app.Store.Initialize(); err != nil {
		return nil, err
	}

	// --- Live sessions ---
	regCfg := session.Config{}
	if evtAdapter != nil {
		regCfg.Events = evtAdapter
	}
	app.Registry = session.NewRegistry(app.Store, regCfg)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Store = app.Store
	cli.Registry = app.Registry
	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc
	cli.QueryLimit = globalCfg.QueryLimit
	cli.CorrectionsLimit = globalCfg.CorrectionsLimit

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base path for the AI team data directory.
// It checks for the AITEAM_HOME env var, then walks up from the current
// directory looking for .aiteamconfig.
func ResolveBasePath() string {
	if home := os.Getenv("AITEAM_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".aiteamconfig")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to cwd.
	cwd, _ := os.Getwd()
	return cwd
}

// eventLogAdapter adapts observability.EventLog to the EventLogger interfaces
// of the storage and session packages.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   "INFO",
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
