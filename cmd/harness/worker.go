package main

import (
	"github.com/spf13/cobra"

	"harness/internal/app/executor"
	"harness/internal/domain/execution"
	kafkainfra "harness/internal/infra/kafka"
)

func newWorkerCommand(root *rootOptions) *cobra.Command {
	var maxParallel, maxRequests int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume requests from Kafka and publish reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			logger := root.logger

			runtimes, err := buildRuntimes(cfg, logger)
			if err != nil {
				return err
			}

			service := executor.NewService(runtimes, executor.WithLogger(logger), executor.WithBudget(cfg.Limits))
			defer func() {
				if cerr := service.Close(); cerr != nil {
					logger.Warn().Err(cerr).Msg("failed to close runtimes")
				}
			}()

			consumer, err := kafkainfra.NewConsumer(kafkainfra.Config{
				Brokers: cfg.KafkaBrokers,
				Topic:   cfg.RequestTopic,
				GroupID: cfg.GroupID,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := consumer.Close(); cerr != nil {
					logger.Warn().Err(cerr).Msg("failed to close kafka consumer")
				}
			}()

			publisher, err := kafkainfra.NewPublisher(kafkainfra.PublisherConfig{
				Brokers:     cfg.KafkaBrokers,
				Topic:       cfg.ResultsTopic,
				Compression: cfg.Compression,
			})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := publisher.Close(); cerr != nil {
					logger.Warn().Err(cerr).Msg("failed to close kafka publisher")
				}
			}()

			logger.Info().
				Strs("brokers", cfg.KafkaBrokers).
				Str("topic", cfg.RequestTopic).
				Str("results_topic", cfg.ResultsTopic).
				Int("max_parallel", maxParallel).
				Msg("worker started")

			ctx := cmd.Context()
			return service.ExecuteFromProducer(ctx, consumer, maxRequests, maxParallel, func(report execution.RunReport) {
				event := logger.Info()
				if report.Err != nil {
					event = logger.Warn().Err(report.Err)
				}
				event.
					Str("request_id", report.Request.ID).
					Bool("all_passed", report.Summary.AllPassed).
					Msg("request finished")

				if err := publisher.PublishRunReport(ctx, report); err != nil {
					logger.Error().Err(err).Str("request_id", report.Request.ID).Msg("failed to publish report")
				}
			})
		},
	}

	cmd.Flags().IntVar(&maxParallel, "max-parallel", root.cfg.MaxParallel, "Requests to run concurrently; JavaScript memory limits are shared across concurrent runs")
	cmd.Flags().IntVar(&maxRequests, "max-requests", root.cfg.MaxRequests, "Stop after this many requests (0 runs until interrupted)")

	return cmd
}
