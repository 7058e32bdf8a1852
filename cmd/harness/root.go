package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

type rootOptions struct {
	cfg       appConfig
	logLevel  string
	logFormat string
	logger    zerolog.Logger
}

func newRootCommand(cfg appConfig) *cobra.Command {
	opts := &rootOptions{cfg: cfg, logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "harness",
		Short: "Run code submissions against behavioural test cases",
		Long: `Harness executes a submission in JavaScript, Python, Rust, Kotlin or Swift
against a list of test cases and reports one result per case.

JavaScript runs in-process. The other languages run in a sandbox selected
with HARNESS_SANDBOX (docker, local or none).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(opts.logLevel, opts.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOrDefault("HARNESS_LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", envOrDefault("HARNESS_LOG_FORMAT", "console"), "Log format (console or json)")
	cmd.PersistentFlags().StringVar(&opts.cfg.Sandbox, "sandbox", cfg.Sandbox, "Sandbox for process languages (docker, local or none)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	cmd.AddCommand(newLanguagesCommand(opts))

	return cmd
}
