package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/editorbridge/editor-bridge/pkg/config"
	"github.com/editorbridge/editor-bridge/pkg/diffcore"
	"github.com/editorbridge/editor-bridge/pkg/editor"
	"github.com/editorbridge/editor-bridge/pkg/rendezvous"
	"github.com/editorbridge/editor-bridge/pkg/transport"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the diff RPC server on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log, err := cfg.Log.CreateLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}

			cfg.WarnIfLegacyFieldsIgnored(log)

			tempFiles := diffcore.NewTempFileManager(defaultTempDir())

			// The real host editor (Neovim/VSCode-style buffer, window and
			// tab lifecycle) is an external collaborator out of scope for
			// this repository (spec.md §1). FakeClient is the same
			// in-memory editor.Client the test suite drives; a production
			// deployment substitutes a real implementation of the
			// editor.Client interface that talks to the actual editor
			// process.
			client := editor.NewFakeClient()
			registry := diffcore.NewRegistry()
			controller := diffcore.NewController(client, registry, cfg.Diff, tempFiles, log)
			defer controller.Shutdown()

			handle, err := rendezvous.Publish(cfg.Rendezvous.Dir, rendezvous.Info{
				PID:        os.Getpid(),
				SocketPath: "stdio",
				Version:    version,
				StartedAt:  time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				log.Warn("rendezvous: could not publish lock file: %v", err)
			} else {
				defer handle.Close()
			}

			log.Info("bridge serving on stdin/stdout (layout=%s)", cfg.Diff.Layout)

			server := transport.NewServer(controller, log)
			return server.Run(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}

func defaultTempDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(homeDir, ".editor-bridge", "scratch")
}
