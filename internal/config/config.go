package config

import (
	"fmt"
	"time"

	"github.com/planora/planora/pkg/policy"
)

// Config is the main Planora action framework configuration
type Config struct {
	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Ledger storage
	Ledger LedgerConfig `json:"ledger" mapstructure:"ledger"`

	// Executor
	Executor ExecutorConfig `json:"executor" mapstructure:"executor"`

	// Workspace policy defaults, applied when a workspace has no
	// stored policy of its own
	PolicyDefaults policy.Config `json:"policy_defaults" mapstructure:"policy_defaults"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// LedgerConfig holds ledger storage configuration
type LedgerConfig struct {
	DBPath          string `json:"db_path" mapstructure:"db_path"`
	AuditLogPath    string `json:"audit_log_path" mapstructure:"audit_log_path"`
	JanitorSchedule string `json:"janitor_schedule" mapstructure:"janitor_schedule"`

	// How long a pending call waits for confirmation before the
	// janitor cancels it
	PendingTTL time.Duration `json:"pending_ttl" mapstructure:"pending_ttl"`
}

// ExecutorConfig holds executor configuration
type ExecutorConfig struct {
	EffectTimeout time.Duration `json:"effect_timeout" mapstructure:"effect_timeout"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
		Ledger: LedgerConfig{
			JanitorSchedule: "@hourly",
			PendingTTL:      24 * time.Hour,
		},
		Executor: ExecutorConfig{
			EffectTimeout: 60 * time.Second,
		},
		PolicyDefaults: policy.DefaultConfig(),
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Executor.EffectTimeout <= 0 {
		return fmt.Errorf("executor.effect_timeout must be positive")
	}
	if c.Ledger.PendingTTL <= 0 {
		return fmt.Errorf("ledger.pending_ttl must be positive")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level: %s", c.Logging.Level)
	}

	return nil
}
