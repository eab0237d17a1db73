// Package core contains configuration loading and validation for the AI
// team server.
package core

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/yeaalexx/claude-code-ai-team/pkg/models"
)

// ConfigurationManager defines the interface for loading and validating
// configuration from the .aiteamconfig file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .aiteamconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func defaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		MemoryDir:        "memory",
		CacheTTLSeconds:  60,
		QueryLimit:       20,
		CorrectionsLimit: 10,
	}
}

// LoadGlobalConfig reads the .aiteamconfig file from the base path using
// Viper. If the file does not exist, sensible defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := defaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(".aiteamconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("memory.dir", cfg.MemoryDir)
	v.SetDefault("memory.cache_ttl_seconds", cfg.CacheTTLSeconds)
	v.SetDefault("query.learnings_limit", cfg.QueryLimit)
	v.SetDefault("query.corrections_limit", cfg.CorrectionsLimit)
	v.SetDefault("identity.role", "")
	v.SetDefault("identity.style", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file found, return defaults.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .aiteamconfig: %w", err)
	}

	// Map nested YAML keys to flat GlobalConfig fields.
	cfg.MemoryDir = v.GetString("memory.dir")
	cfg.CacheTTLSeconds = v.GetInt("memory.cache_ttl_seconds")
	cfg.QueryLimit = v.GetInt("query.learnings_limit")
	cfg.CorrectionsLimit = v.GetInt("query.corrections_limit")
	cfg.IdentityRole = v.GetString("identity.role")
	cfg.IdentityStyle = v.GetString("identity.style")

	return cfg, nil
}

// ValidateConfig checks the provided configuration for invalid values and
// returns a clear error message identifying the problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.MemoryDir == "" {
		errs = append(errs, "memory.dir must not be empty")
	}
	if cfg.CacheTTLSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("memory.cache_ttl_seconds must be positive, got %d", cfg.CacheTTLSeconds))
	}
	if cfg.QueryLimit <= 0 {
		errs = append(errs, fmt.Sprintf("query.learnings_limit must be positive, got %d", cfg.QueryLimit))
	}
	if cfg.CorrectionsLimit <= 0 {
		errs = append(errs, fmt.Sprintf("query.corrections_limit must be positive, got %d", cfg.CorrectionsLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
