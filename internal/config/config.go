// Package config loads and saves the warden TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wardenlabs/warden/internal/autonomy"
)

// Duration wraps time.Duration so TOML values can be written as "120s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the full warden configuration.
type Config struct {
	Autonomy AutonomySection `toml:"autonomy"`
	Policy   PolicySection   `toml:"policy"`
	Sandbox  SandboxSection  `toml:"sandbox"`
	Audit    AuditSection    `toml:"audit"`
	Tools    ToolsSection    `toml:"tools"`
}

// AutonomySection configures the session's autonomy level and quotas.
type AutonomySection struct {
	Level              string   `toml:"level"` // none, observe, workspace, home, full
	ConfirmDestructive bool     `toml:"confirm_destructive"`
	SessionWriteLimit  int64    `toml:"session_write_limit"` // bytes, 0 = unlimited
	SessionFileLimit   int      `toml:"session_file_limit"`  // files, 0 = unlimited
	MaxCallsPerPrompt  int      `toml:"max_calls_per_prompt"`
	MaxCallsPerSession int      `toml:"max_calls_per_session"`
	ShellTimeout       Duration `toml:"shell_timeout"`
	WriteCooldown      Duration `toml:"write_cooldown"`
}

// PolicySection configures the shell policy engine.
type PolicySection struct {
	// RuleFile adds site-local rules on top of the compiled-in defaults.
	RuleFile string `toml:"rule_file"`
}

// SandboxSection configures OS-level confinement of shell commands.
type SandboxSection struct {
	// WritePaths are directories the sandboxed command may write; the
	// workspace root is always included.
	WritePaths []string `toml:"write_paths"`
	// AllowUnsandboxed opts into running shell commands on kernels
	// without sandbox support. Defaults to fail-closed.
	AllowUnsandboxed bool `toml:"allow_unsandboxed"`
}

// AuditSection configures the audit trail store.
type AuditSection struct {
	DBPath            string   `toml:"db_path"`
	RetentionSchedule string   `toml:"retention_schedule"` // cron expression, e.g. "@daily"
	RetentionMaxAge   Duration `toml:"retention_max_age"`
}

// ToolsSection configures the tool registry.
type ToolsSection struct {
	WorkspaceRoot string `toml:"workspace_root"`
	// ManifestPath optionally registers external plugin tools.
	ManifestPath string `toml:"manifest_path"`
}

// Default returns the shipped configuration: observe level, conservative
// quotas, fail-closed sandbox.
func Default() *Config {
	return &Config{
		Autonomy: AutonomySection{
			Level:              "observe",
			ConfirmDestructive: true,
			SessionWriteLimit:  64 * 1024 * 1024,
			SessionFileLimit:   512,
			MaxCallsPerPrompt:  50,
			MaxCallsPerSession: 1000,
			ShellTimeout:       Duration(120 * time.Second),
			WriteCooldown:      Duration(200 * time.Millisecond),
		},
		Audit: AuditSection{
			DBPath:            "./data/audit.db",
			RetentionSchedule: "@daily",
			RetentionMaxAge:   Duration(30 * 24 * time.Hour),
		},
		Tools: ToolsSection{
			WorkspaceRoot: ".",
		},
	}
}

// Load reads the TOML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return nil
}

// AutonomyConfig builds the session autonomy configuration.
func (c *Config) AutonomyConfig() *autonomy.Config {
	return &autonomy.Config{
		Level:              autonomy.ParseLevel(c.Autonomy.Level),
		ConfirmDestructive: c.Autonomy.ConfirmDestructive,
		SessionWriteLimit:  c.Autonomy.SessionWriteLimit,
		SessionFileLimit:   c.Autonomy.SessionFileLimit,
		MaxCallsPerPrompt:  c.Autonomy.MaxCallsPerPrompt,
		MaxCallsPerSession: c.Autonomy.MaxCallsPerSession,
		ShellTimeout:       time.Duration(c.Autonomy.ShellTimeout),
		WriteCooldown:      time.Duration(c.Autonomy.WriteCooldown),
	}
}
