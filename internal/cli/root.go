// Package cli implements the taskshare command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"taskshare/internal/config"
)

type globalFlags struct {
	configPath  string
	databaseURL string
}

// NewRootCommand builds the taskshare command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "taskshare",
		Short:         "Shared task lists with role based permissions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "Database DSN (overrides DATABASE_URL)")

	root.AddCommand(newServeCommand(flags))
	root.AddCommand(newMigrateCommand(flags))
	root.AddCommand(newSweepCommand(flags))
	root.AddCommand(newTokenCommand(flags))
	root.AddCommand(newUserCommand(flags))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f *globalFlags) load() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if f.databaseURL != "" {
		cfg.DatabaseURL = f.databaseURL
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
