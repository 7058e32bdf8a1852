package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	"harness/internal/metrics"
	"harness/internal/ports"
	runtimex "harness/internal/runtime"
	"harness/internal/runtime/governor"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBudget overrides the default per-invocation budget. Zero fields keep
// their defaults.
func WithBudget(budget execution.Budget) Option {
	return func(s *Service) {
		s.budget = budget.Merge(execution.DefaultBudget())
	}
}

// Service runs submissions against their test cases through the registered
// language runtimes.
type Service struct {
	runtimes runtimex.Engine
	budget   execution.Budget
	logger   zerolog.Logger
	runner   *suiteRunner
}

var _ ports.TestRunner = (*Service)(nil)

// NewService constructs a Service with the provided runtime dependency.
func NewService(runtimes runtimex.Engine, opts ...Option) *Service {
	s := &Service{
		runtimes: runtimes,
		budget:   execution.DefaultBudget(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gov := governor.New(governor.WithLogger(s.logger))
	s.runner = newSuiteRunner(runtimes, newEngine(gov), s.budget)
	return s
}

// RunTests evaluates code against testCases and returns one result per case,
// in order. Failures of any kind are reported inside the results.
func (s *Service) RunTests(ctx context.Context, code string, testCases []execution.TestCase, language execution.Language) []execution.TestResult {
	return s.Run(ctx, execution.ExecutionRequest{
		Language:  language,
		Code:      code,
		TestCases: testCases,
	}).Results
}

// Run evaluates a request and summarises its results.
func (s *Service) Run(ctx context.Context, req execution.ExecutionRequest) execution.Summary {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	logger := s.logger.With().
		Str("request_id", req.ID).
		Str("language", string(req.Language)).
		Int("cases", len(req.TestCases)).
		Logger()

	metrics.ActiveRequests.Inc()
	defer metrics.ActiveRequests.Dec()

	start := time.Now()
	summary := execution.Summarize(s.runner.Run(logger.WithContext(ctx), req))
	elapsed := time.Since(start)

	verdict := "failed"
	if summary.AllPassed {
		verdict = "passed"
	}
	metrics.RequestsTotal.WithLabelValues(string(req.Language), verdict).Inc()
	metrics.PhaseDuration.WithLabelValues(string(req.Language), "request").Observe(float64(elapsed.Milliseconds()))
	for _, result := range summary.Results {
		outcome := "failed"
		if result.Passed {
			outcome = "passed"
		}
		metrics.TestCasesTotal.WithLabelValues(string(req.Language), outcome).Inc()
	}

	logger.Info().
		Bool("all_passed", summary.AllPassed).
		Dur("duration", elapsed).
		Msg("request evaluated")

	return summary
}

// Languages lists the languages the service can run.
func (s *Service) Languages() []execution.Language {
	return s.runtimes.Languages()
}

// ExecuteFromProducer pulls requests from the supplied producer and runs them with bounded parallelism.
//
// If maxRequests is greater than zero the execution stops after the specified
// number of requests has been processed. Otherwise it keeps consuming until the
// context is cancelled or the producer signals completion via io.EOF.
//
// When onReport is provided it is invoked after every request with the
// corresponding run report.
func (s *Service) ExecuteFromProducer(
	ctx context.Context,
	producer ports.RequestProducer,
	maxRequests int,
	maxParallel int,
	onReport func(execution.RunReport),
) error {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxParallel)
	processed := 0

	finish := func(err error) error {
		wg.Wait()
		return err
	}

	for {
		if maxRequests > 0 && processed >= maxRequests {
			return finish(nil)
		}

		req, err := producer.NextRequest(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return finish(nil)
			}

			return finish(fmt.Errorf("get next request: %w", err))
		}

		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return finish(nil)
		}
		wg.Add(1)
		processed++
		go func(req execution.ExecutionRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			report := execution.RunReport{
				Request: req,
				Summary: s.Run(ctx, req),
			}
			if err := ctx.Err(); err != nil {
				report.Err = fmt.Errorf("request interrupted: %w", err)
			}
			if onReport != nil {
				onReport(report)
			}
		}(req)
	}
}

// Close releases any resources owned by the underlying runtimes.
func (s *Service) Close() error {
	return s.runtimes.Close()
}
