package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLanguagesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the languages this build can run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtimes, err := buildRuntimes(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer runtimes.Close()

			for _, lang := range runtimes.Languages() {
				fmt.Fprintln(cmd.OutOrStdout(), lang)
			}
			return nil
		},
	}
}
