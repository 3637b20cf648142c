package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	projectDir    string
	verbose       bool
	noInteraction bool
	logLevel      string
	logFormat     string
	logOutput     string
	metricsFile   string
	traceExporter string
	traceEndpoint string
	journalPath   string

	appVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	appVersion = version
	rootCmd := &cobra.Command{
		Use:   "wpstarter [steps...]",
		Short: "WP Starter - WordPress project scaffolding",
		Long: `WP Starter sets up a Composer-managed WordPress project.

It generates wp-config.php and index.php from templates, bridges the env file
into WordPress constants, places dropins and development content, and installs
and runs WP-CLI.

Running "wpstarter" without a sub-command is the same as "wpstarter run".`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(cmd.Context(), args)
		},
	}

	// Persistent flags available to all commands
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&projectDir, "project", "d", "", "project root, the directory holding composer.json (default: current directory)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&noInteraction, "no-interaction", "n", false, "never ask questions, use defaults")
	flags.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&logOutput, "log-output", "", "log output (stderr, stdout or a file path)")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	flags.StringVar(&traceExporter, "trace", "", "trace exporter (stdout, otlp)")
	flags.StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP endpoint used with --trace=otlp")
	flags.StringVar(&journalPath, "journal", "", "SQLite run journal path (overrides the journal setting)")

	// Add subcommands
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newStepsCommand())
	rootCmd.AddCommand(newEnvCommand())
	rootCmd.AddCommand(newToolCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
