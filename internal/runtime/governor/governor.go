// Package governor bounds a single execution attempt in wall-clock time and
// converts panics into ordinary outcomes.
//
// Preemption is owned by the adapters: the context handed to the bounded
// function is cancelled at the hard deadline, and every adapter reacts to that
// by forcibly stopping its execution context (goja interrupt, process kill).
// The governor never waits for that teardown; once the deadline passes it
// reports a timeout and abandons the goroutine.
package governor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
)

// Func is one bounded unit of work. It must honour ctx cancellation.
type Func func(ctx context.Context) execution.Outcome

// Governor enforces budgets on bounded executions.
type Governor struct {
	logger zerolog.Logger
}

// Option configures a Governor.
type Option func(*Governor)

// WithLogger sets the logger used to report recovered panics and abandoned runs.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Governor) {
		g.logger = logger
	}
}

// New constructs a Governor.
func New(opts ...Option) *Governor {
	g := &Governor{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RunBounded executes fn on its own goroutine and waits at most
// budget.Deadline() for it to finish.
func (g *Governor) RunBounded(ctx context.Context, budget execution.Budget, fn Func) execution.Outcome {
	if err := ctx.Err(); err != nil {
		return execution.Cancelled()
	}

	limit := budget.Deadline()
	if limit <= 0 {
		limit = execution.DefaultTimeLimit
	}

	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan execution.Outcome, 1)
	go func() {
		done <- g.protect(runCtx, fn)
	}()

	select {
	case outcome := <-done:
		if outcome.Kind == execution.OutcomeCancelled && ctx.Err() == nil {
			// The adapter observed our own deadline, not the caller's.
			return execution.TimedOut()
		}
		return outcome
	case <-runCtx.Done():
		if ctx.Err() != nil {
			g.logger.Debug().Msg("bounded execution cancelled by caller")
			return execution.Cancelled()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			g.logger.Debug().Dur("limit", limit).Msg("bounded execution abandoned after hard deadline")
		}
		return execution.TimedOut()
	}
}

func (g *Governor) protect(ctx context.Context, fn Func) (outcome execution.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("recovered panic inside bounded execution")
			outcome = execution.Thrown(fmt.Sprintf("internal error: %v", r))
		}
	}()
	return fn(ctx)
}
