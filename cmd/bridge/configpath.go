package main

import (
	"github.com/spf13/cobra"

	"github.com/editorbridge/editor-bridge/pkg/config"
)

// resolveConfigPath reads the --config persistent flag, falling back to
// the default location when unset.
func resolveConfigPath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}
	return config.GetDefaultConfigPath()
}
