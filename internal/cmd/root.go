// Package cmd implements the modelrun CLI.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evalforge/modelrun/internal/config"
	"github.com/evalforge/modelrun/internal/observability"
)

// versionInfo holds build-time version metadata, set via SetVersionInfo
// before Execute.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

var (
	rootConfigFile string
	rootLogLevel   string
	rootLogJSON    bool

	// processConfig is resolved once in the root PersistentPreRunE and
	// read by subcommands.
	processConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "modelrun",
	Short: "Batch model prediction runner",
	Long: `modelrun issues streaming chat-completion requests for a dataset of
questions, extracts the labeled answer fields from each response, and
persists one result artifact per question.

Completed questions are skipped on restart, so an interrupted run can
be resumed by running the same manifest again.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootConfigFile)
		if err != nil {
			return err
		}
		processConfig = cfg

		level := cfg.Logging.Level
		if rootLogLevel != "" {
			level = rootLogLevel
		}
		observability.InitCLILogger(level, rootLogJSON || cfg.Logging.JSON)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigFile, "config", "", "Path to process config file")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&rootLogJSON, "log-json", false, "Emit logs as JSON")
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = version
}

// Execute runs the CLI. It installs signal handling so an interrupt
// cancels the command context, letting in-flight jobs drain.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}
