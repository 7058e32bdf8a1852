package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	"harness/internal/metrics"
	runtimex "harness/internal/runtime"
)

type suiteRunner struct {
	runtimes runtimex.Engine
	engine   *engine
	budget   execution.Budget
}

func newSuiteRunner(runtimes runtimex.Engine, eng *engine, budget execution.Budget) *suiteRunner {
	return &suiteRunner{
		runtimes: runtimes,
		engine:   eng,
		budget:   budget,
	}
}

// Run evaluates every case of the request in order and returns exactly one
// result per case.
func (r *suiteRunner) Run(ctx context.Context, req execution.ExecutionRequest) []execution.TestResult {
	cases := req.TestCases
	logger := zerolog.Ctx(ctx)

	module, err := r.runtimes.Module(req.Language)
	if err != nil {
		return execution.FailAll(cases, fmt.Sprintf("unsupported language: %s", req.Language))
	}

	exec := newSuiteExecution(req, cases)
	if exec.pending() == 0 {
		return exec.results
	}

	unit, failure, ok := r.prepare(ctx, module, req, exec.calls())
	if !ok {
		return exec.failAll(failure)
	}
	defer func() {
		if err := unit.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to release prepared unit")
		}
	}()

	budget := r.budget
	if budget.Grace <= 0 {
		budget.Grace = module.Grace()
	}
	symbols := symbolSet(unit)

	for idx := range cases {
		exec.executeCase(ctx, idx, func(tc execution.TestCase) execution.Outcome {
			return r.engine.runOne(ctx, req.Language, unit, symbols, tc, budget)
		})
	}

	return exec.results
}

// prepare compiles the submission once. When it fails, the returned outcome is
// what every case reports.
func (r *suiteRunner) prepare(ctx context.Context, module runtimex.Module, req execution.ExecutionRequest, calls []runtimex.Call) (runtimex.PreparedUnit, execution.Outcome, bool) {
	logger := zerolog.Ctx(ctx)
	prepareCtx, cancel := context.WithTimeout(ctx, r.budget.CompileTimeLimit)
	defer cancel()

	start := time.Now()
	unit, compileErr, err := module.Prepare(prepareCtx, runtimex.Submission{
		Language: req.Language,
		Code:     req.Code,
		Calls:    calls,
	})
	elapsed := time.Since(start)

	result := "ok"
	var failure execution.Outcome
	switch {
	case ctx.Err() != nil:
		result = "cancelled"
		failure = execution.Cancelled()
	case err != nil:
		result = "host_fault"
		failure = execution.CompileFailure(fmt.Sprintf("internal error: %v", err))
		logger.Error().Err(err).Msg("prepare failed")
	case compileErr != nil:
		result = "compile_error"
		failure = execution.CompileFailure(compileErr.Message)
	case unit == nil:
		result = "host_fault"
		failure = execution.CompileFailure("internal error: runtime returned no prepared unit")
	}
	metrics.PhaseDuration.WithLabelValues(string(req.Language), "prepare").Observe(float64(elapsed.Milliseconds()))

	logger.Debug().Str("result", result).Dur("duration", elapsed).Msg("submission prepared")

	if result != "ok" {
		if unit != nil {
			_ = unit.Close()
		}
		return nil, failure, false
	}
	return unit, execution.Outcome{}, true
}

type suiteExecution struct {
	cases   []execution.TestCase
	results []execution.TestResult
	skip    []bool
}

// newSuiteExecution validates the cases up front. Malformed cases are
// answered immediately and left out of the call plan.
func newSuiteExecution(req execution.ExecutionRequest, cases []execution.TestCase) *suiteExecution {
	s := &suiteExecution{
		cases:   cases,
		results: make([]execution.TestResult, len(cases)),
		skip:    make([]bool, len(cases)),
	}
	for idx, tc := range cases {
		if err := tc.Validate(); err != nil {
			s.results[idx] = execution.TestResult{
				Description: tc.Description,
				Error:       fmt.Sprintf("invalid test case: %v", err),
			}
			s.skip[idx] = true
		}
	}
	return s
}

// failAll reports the same outcome for every case, valid or not.
func (s *suiteExecution) failAll(outcome execution.Outcome) []execution.TestResult {
	for idx, tc := range s.cases {
		s.results[idx] = execution.Evaluate(tc, outcome)
	}
	return s.results
}

func (s *suiteExecution) pending() int {
	n := 0
	for _, skipped := range s.skip {
		if !skipped {
			n++
		}
	}
	return n
}

func (s *suiteExecution) calls() []runtimex.Call {
	calls := make([]runtimex.Call, 0, len(s.cases))
	for idx, tc := range s.cases {
		if s.skip[idx] {
			continue
		}
		calls = append(calls, runtimex.Call{EntryPoint: tc.EntryPoint, Arguments: tc.Arguments})
	}
	return calls
}

// executeCase runs one case unless the caller has already given up, in which
// case it is reported cancelled without being invoked.
func (s *suiteExecution) executeCase(ctx context.Context, idx int, invoke func(execution.TestCase) execution.Outcome) {
	if s.skip[idx] {
		return
	}
	tc := s.cases[idx]

	if ctx.Err() != nil {
		s.results[idx] = execution.Evaluate(tc, execution.Cancelled())
		return
	}

	s.results[idx] = execution.Evaluate(tc, invoke(tc))
}
