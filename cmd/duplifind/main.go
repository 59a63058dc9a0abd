package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/duplifind/duplifind/internal/errs"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

var (
	configPath string
	serverAddr string
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "duplifind",
		Short:   "Find, group, and act on duplicate files",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "duplifind API server address, for commands that need a running scan state")

	root.AddCommand(
		newScanCmd(),
		newServeCmd(),
		newGroupsCmd(),
		newStrategyCmd(),
		newExecuteCmd(),
		newCacheCmd(),
	)

	if err := root.Execute(); err != nil {
		return exitCode(err)
	}
	return 0
}

// exitCode maps an error to a process exit code: 0 success, 1 input
// error, 2 unrecoverable cache error, 130 cancelled.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrCancelled):
		return 130
	case errs.Is(err, errs.KindCache):
		return 2
	default:
		return 1
	}
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
