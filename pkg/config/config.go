package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/editorbridge/editor-bridge/pkg/logger"
)

// Layout selects how a proposed diff is presented to the user.
type Layout string

const (
	LayoutVertical   Layout = "vertical"
	LayoutHorizontal Layout = "horizontal"
	LayoutInline     Layout = "inline"
)

// OnNewFileReject controls cleanup of the placeholder buffer/window used
// for a new-file diff when the user rejects it.
type OnNewFileReject string

const (
	OnNewFileRejectKeepEmpty   OnNewFileReject = "keep_empty"
	OnNewFileRejectCloseWindow OnNewFileReject = "close_window"
)

// DiffOpts is the configuration surface consumed by the diff core
// (spec.md §6, "Configuration surface").
type DiffOpts struct {
	Layout               Layout          `json:"layout"`
	OpenInNewTab         bool            `json:"openInNewTab"`
	KeepTerminalFocus    bool            `json:"keepTerminalFocus"`
	HideTerminalInNewTab bool            `json:"hideTerminalInNewTab"`
	OnNewFileReject      OnNewFileReject `json:"onNewFileReject"`

	// Legacy fields, accepted for backward compatibility (spec.md §9, Open
	// Question 2). VerticalSplit and OpenInCurrentTab have defined
	// mappings onto Layout/OpenInNewTab, applied by normalizeLegacy. The
	// other two are accepted-but-ignored.
	VerticalSplit     *bool `json:"vertical_split,omitempty"`
	OpenInCurrentTab  *bool `json:"open_in_current_tab,omitempty"`
	AutoCloseOnAccept *bool `json:"auto_close_on_accept,omitempty"`
	ShowDiffStats     *bool `json:"show_diff_stats,omitempty"`
}

// LogConfig contains logging configuration, in the teacher's shape.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	File   string `json:"file,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// RendezvousConfig controls where the bridge publishes its discovery
// lock file for the assistant CLI to find.
type RendezvousConfig struct {
	Dir string `json:"dir,omitempty"`
}

// Config is the root configuration object, loaded from
// ~/.editor-bridge/config.json and overridden by EDITOR_BRIDGE_* env vars.
type Config struct {
	Diff       DiffOpts         `json:"diffOpts"`
	Log        LogConfig        `json:"log,omitempty"`
	Rendezvous RendezvousConfig `json:"rendezvous,omitempty"`

	// legacyWarnOnce guards WarnIfLegacyFieldsIgnored so the process logs
	// the accepted-but-ignored legacy fields at most once, no matter how
	// many times the caller checks (spec.md §9, Open Question 2).
	legacyWarnOnce sync.Once
}

// DefaultDiffOpts returns the spec's default diff behavior.
func DefaultDiffOpts() DiffOpts {
	return DiffOpts{
		Layout:               LayoutVertical,
		OpenInNewTab:         false,
		KeepTerminalFocus:    true,
		HideTerminalInNewTab: false,
		OnNewFileReject:      OnNewFileRejectKeepEmpty,
	}
}

// DefaultLogConfig returns default logging configuration.
func DefaultLogConfig() LogConfig {
	homeDir, _ := os.UserHomeDir()
	return LogConfig{
		Level:  "info",
		File:   filepath.Join(homeDir, ".editor-bridge", "bridge.log"),
		Prefix: "[bridge] ",
	}
}

// DefaultRendezvousConfig returns default rendezvous lock-file location.
func DefaultRendezvousConfig() RendezvousConfig {
	homeDir, _ := os.UserHomeDir()
	return RendezvousConfig{
		Dir: filepath.Join(homeDir, ".editor-bridge", "run"),
	}
}

// CreateLogger creates a logger from the log configuration.
func (c *LogConfig) CreateLogger() (*logger.Logger, error) {
	if c == nil {
		defaults := DefaultLogConfig()
		c = &defaults
	}
	cfg := &logger.Config{
		Level:    logger.ParseLogLevel(c.Level),
		Prefix:   c.Prefix,
		Console:  true,
		File:     c.File != "",
		FilePath: c.File,
	}
	return logger.NewLogger(cfg)
}

// LoadConfig loads configuration from file and merges with environment
// variables. Environment variables take precedence over config file values.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		Diff:       DefaultDiffOpts(),
		Log:        DefaultLogConfig(),
		Rendezvous: DefaultRendezvousConfig(),
	}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Diff.normalizeLegacy()

	if val := os.Getenv("EDITOR_BRIDGE_LAYOUT"); val != "" {
		cfg.Diff.Layout = Layout(val)
	}
	if val := os.Getenv("EDITOR_BRIDGE_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("EDITOR_BRIDGE_RENDEZVOUS_DIR"); val != "" {
		cfg.Rendezvous.Dir = val
	}

	return cfg, nil
}

// SaveConfig saves configuration to file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".editor-bridge", "config.json"), nil
}

// normalizeLegacy maps legacy diff options onto current ones (spec.md §9,
// Open Question 2). AutoCloseOnAccept and ShowDiffStats have no defined
// mapping and are left accepted-but-ignored.
func (d *DiffOpts) normalizeLegacy() {
	if d.VerticalSplit != nil {
		if *d.VerticalSplit {
			d.Layout = LayoutVertical
		} else {
			d.Layout = LayoutHorizontal
		}
	}
	if d.OpenInCurrentTab != nil {
		d.OpenInNewTab = !*d.OpenInCurrentTab
	}
}

// WarnIfLegacyFieldsIgnored logs once, at WARN, if the loaded config set
// auto_close_on_accept or show_diff_stats (spec.md §9, Open Question 2:
// these legacy fields are accepted for backward compatibility but have no
// defined mapping onto current behavior, so the only way the caller learns
// they're doing nothing is this warning). Call it once the process logger
// exists, since LoadConfig itself runs before Log.CreateLogger can.
func (c *Config) WarnIfLegacyFieldsIgnored(log *logger.Logger) {
	if log == nil {
		return
	}
	if c.Diff.AutoCloseOnAccept == nil && c.Diff.ShowDiffStats == nil {
		return
	}
	c.legacyWarnOnce.Do(func() {
		log.Warn("config: auto_close_on_accept/show_diff_stats are accepted for backward compatibility but have no effect")
	})
}
