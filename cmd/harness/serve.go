package main

import (
	"github.com/spf13/cobra"

	"harness/internal/app/executor"
	"harness/internal/infra/httpapi"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		addr      string
		rateLimit float64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve exposes POST /v1/run, GET /v1/languages, GET /health and
GET /metrics until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtimes, err := buildRuntimes(root.cfg, root.logger)
			if err != nil {
				return err
			}

			service := executor.NewService(runtimes, executor.WithLogger(root.logger), executor.WithBudget(root.cfg.Limits))
			defer func() {
				if cerr := service.Close(); cerr != nil {
					root.logger.Warn().Err(cerr).Msg("failed to close runtimes")
				}
			}()

			server := httpapi.New(httpapi.Config{
				Addr:      addr,
				RateLimit: rateLimit,
				Logger:    root.logger,
			}, service)
			return server.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", root.cfg.Addr, "Listen address")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", root.cfg.RateLimit, "Run requests per second per client (0 disables)")

	return cmd
}
