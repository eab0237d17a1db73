package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yeaalexx/claude-code-ai-team/pkg/models"
)

func TestLoadGlobalConfig_MissingFileReturnsDefaults(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MemoryDir != "memory" {
		t.Errorf("expected default memory dir, got %s", cfg.MemoryDir)
	}
	if cfg.CacheTTLSeconds != 60 {
		t.Errorf("expected default cache TTL 60, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.QueryLimit != 20 {
		t.Errorf("expected default query limit 20, got %d", cfg.QueryLimit)
	}
	if cfg.CorrectionsLimit != 10 {
		t.Errorf("expected default corrections limit 10, got %d", cfg.CorrectionsLimit)
	}
}

func TestLoadGlobalConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := `memory:
  dir: brain
  cache_ttl_seconds: 120
query:
  learnings_limit: 5
identity:
  role: reviewer persona
`
	if err := os.WriteFile(filepath.Join(dir, ".aiteamconfig"), []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cm := NewConfigurationManager(dir)
	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MemoryDir != "brain" {
		t.Errorf("expected memory dir brain, got %s", cfg.MemoryDir)
	}
	if cfg.CacheTTLSeconds != 120 {
		t.Errorf("expected cache TTL 120, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.QueryLimit != 5 {
		t.Errorf("expected query limit 5, got %d", cfg.QueryLimit)
	}
	// Unset keys keep their defaults.
	if cfg.CorrectionsLimit != 10 {
		t.Errorf("expected default corrections limit, got %d", cfg.CorrectionsLimit)
	}
	if cfg.IdentityRole != "reviewer persona" {
		t.Errorf("unexpected identity role: %s", cfg.IdentityRole)
	}
}

func TestValidateConfig(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	valid := &models.GlobalConfig{
		MemoryDir:        "memory",
		CacheTTLSeconds:  60,
		QueryLimit:       20,
		CorrectionsLimit: 10,
	}
	if err := cm.ValidateConfig(valid); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	invalid := &models.GlobalConfig{
		MemoryDir:        "",
		CacheTTLSeconds:  -1,
		QueryLimit:       0,
		CorrectionsLimit: 10,
	}
	if err := cm.ValidateConfig(invalid); err == nil {
		t.Error("expected validation error")
	}

	if err := cm.ValidateConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
