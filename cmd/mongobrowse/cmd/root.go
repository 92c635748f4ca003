package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/peternagy/mongobrowse/internal/app"
	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/storage"
)

var (
	configDir string
	debugLog  bool
	a         *app.App
)

var rootCmd = &cobra.Command{
	Use:   "mongobrowse",
	Short: "Browse and edit MongoDB servers",
	Long: `mongobrowse browses MongoDB servers, optionally through an SSH tunnel.

Servers are saved once with "servers add" and then referred to by label or ID.
Passwords are kept in the OS keyring, never in the configuration files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		cfg := app.Config{ConfigDir: configDir}
		if debugLog {
			cfg.Emitter = core.NewWriterEmitter(os.Stderr)
		}
		var err error
		a, err = app.New(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if debugLog && a != nil {
			printStats(cmd.ErrOrStderr(), a.Metrics().Rows())
		}
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default $"+storage.ConfigDirEnv+" or the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "print debug log lines to stderr")
}
