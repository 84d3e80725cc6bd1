package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploykit-dev/deploykit/internal/core/backend"
	"github.com/deploykit-dev/deploykit/internal/core/config"
	"github.com/deploykit-dev/deploykit/internal/shell/compose"
	"github.com/deploykit-dev/deploykit/internal/shell/image"
	"github.com/deploykit-dev/deploykit/internal/shell/orchestrator"
	"github.com/deploykit-dev/deploykit/internal/shell/portainer"
	"github.com/deploykit-dev/deploykit/internal/shell/secrets"
	"github.com/deploykit-dev/deploykit/internal/shell/sshexec"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "deploykit",
	Short:         "Docker deployment toolkit",
	Long:          "Deploykit ships a built container image to an SSH/compose host or a Portainer endpoint.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	cobra.EnableCaseInsensitive = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

// setupLogger creates the process logger from the global flags.
func setupLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// newDriver assembles the orchestration driver for the current directory.
// The SSH executor is returned separately so commands can close it.
func newDriver(logger *slog.Logger) (*orchestrator.Driver, *sshexec.SSHExecutor) {
	executor := sshexec.NewSSHExecutor()
	provider := image.NewDockerProvider(".", logger)

	driver := orchestrator.NewDriver(
		&config.Resolver{},
		secrets.NewProvisioner(".", logger),
		provider,
		compose.New(".", executor, provider, logger),
		portainer.New(".", logger),
		logger,
	)
	return driver, executor
}

// newSelector builds the backend selector from the mutually exclusive backend
// flags and the optional positional target. Targets and credentials resolve
// CLI argument first, then environment, then config file (the resolver folds
// environment over config already).
func newSelector(useCompose, usePortainer bool, target string) (orchestrator.Selector, error) {
	if useCompose == usePortainer {
		return nil, backend.ErrNoBackend
	}

	if useCompose {
		return func(cfg *config.Config) (backend.Selection, error) {
			t := target
			if t == "" {
				t = cfg.SSHTarget
			}
			return backend.NewCompose(t)
		}, nil
	}

	return func(cfg *config.Config) (backend.Selection, error) {
		url := target
		if url == "" {
			url = cfg.PortainerURL
		}
		return backend.NewPortainer(url, os.Getenv("PORTAINER_API_KEY"))
	}, nil
}
