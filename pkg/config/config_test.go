package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/editorbridge/editor-bridge/pkg/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	require.Equal(t, LayoutVertical, cfg.Diff.Layout)
	require.False(t, cfg.Diff.OpenInNewTab)
	require.True(t, cfg.Diff.KeepTerminalFocus)
	require.Equal(t, OnNewFileRejectKeepEmpty, cfg.Diff.OnNewFileReject)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	err := os.WriteFile(configPath, []byte(`{"diffOpts":{"layout":"inline","openInNewTab":true}}`), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.Equal(t, LayoutInline, cfg.Diff.Layout)
	require.True(t, cfg.Diff.OpenInNewTab)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	t.Setenv("EDITOR_BRIDGE_LAYOUT", "horizontal")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.Equal(t, LayoutHorizontal, cfg.Diff.Layout)
}

func TestLegacyVerticalSplitMapsToLayout(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	err := os.WriteFile(configPath, []byte(`{"diffOpts":{"vertical_split":false}}`), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.Equal(t, LayoutHorizontal, cfg.Diff.Layout)
}

func TestLegacyOpenInCurrentTabMapsToOpenInNewTab(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	err := os.WriteFile(configPath, []byte(`{"diffOpts":{"open_in_current_tab":false}}`), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.True(t, cfg.Diff.OpenInNewTab)
}

func TestWarnIfLegacyFieldsIgnoredLogsOnce(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "bridge.log")

	log, err := logger.NewLogger(&logger.Config{
		Level:    logger.WARN,
		Console:  false,
		File:     true,
		FilePath: logPath,
	})
	require.NoError(t, err)
	defer log.Close()

	ignoredTrue := true
	cfg := &Config{Diff: DefaultDiffOpts()}
	cfg.Diff.AutoCloseOnAccept = &ignoredTrue

	cfg.WarnIfLegacyFieldsIgnored(log)
	cfg.WarnIfLegacyFieldsIgnored(log)
	cfg.WarnIfLegacyFieldsIgnored(log)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	content := string(data)
	require.Contains(t, content, "auto_close_on_accept")
	require.Equal(t, 1, strings.Count(content, "auto_close_on_accept"),
		"warning should be logged once per Config, no matter how many times it's checked")
}

func TestWarnIfLegacyFieldsIgnoredSkipsWhenUnset(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "bridge.log")

	log, err := logger.NewLogger(&logger.Config{
		Level:    logger.WARN,
		Console:  false,
		File:     true,
		FilePath: logPath,
	})
	require.NoError(t, err)
	defer log.Close()

	cfg := &Config{Diff: DefaultDiffOpts()}
	cfg.WarnIfLegacyFieldsIgnored(log)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Empty(t, string(data))
}

func TestSaveAndReloadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	cfg := &Config{Diff: DefaultDiffOpts(), Log: DefaultLogConfig(), Rendezvous: DefaultRendezvousConfig()}
	cfg.Diff.Layout = LayoutInline

	require.NoError(t, SaveConfig(cfg, configPath))

	reloaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.Equal(t, LayoutInline, reloaded.Diff.Layout)
}
