package executor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	"harness/internal/metrics"
	runtimex "harness/internal/runtime"
	"harness/internal/runtime/governor"
)

// engine performs one governed invocation of a prepared unit.
type engine struct {
	governor *governor.Governor
}

func newEngine(gov *governor.Governor) *engine {
	return &engine{governor: gov}
}

// runOne invokes the case's entry point once. A name the unit does not define
// is reported without invoking anything.
func (e *engine) runOne(
	ctx context.Context,
	lang execution.Language,
	unit runtimex.PreparedUnit,
	symbols map[string]struct{},
	tc execution.TestCase,
	budget execution.Budget,
) execution.Outcome {
	if _, ok := symbols[tc.EntryPoint]; !ok {
		metrics.InvocationsTotal.WithLabelValues(string(lang), execution.OutcomeMissingEntryPoint.String()).Inc()
		return execution.MissingEntryPoint(tc.EntryPoint)
	}

	call := runtimex.Call{EntryPoint: tc.EntryPoint, Arguments: tc.Arguments}

	start := time.Now()
	outcome := e.governor.RunBounded(ctx, budget, func(runCtx context.Context) execution.Outcome {
		return unit.Invoke(runCtx, call, budget)
	})
	elapsed := time.Since(start)

	metrics.InvocationsTotal.WithLabelValues(string(lang), outcome.Kind.String()).Inc()
	metrics.PhaseDuration.WithLabelValues(string(lang), "invoke").Observe(float64(elapsed.Milliseconds()))

	zerolog.Ctx(ctx).Debug().
		Str("entry_point", tc.EntryPoint).
		Stringer("outcome", outcome.Kind).
		Dur("duration", elapsed).
		Msg("invocation finished")

	return outcome
}

func symbolSet(unit runtimex.PreparedUnit) map[string]struct{} {
	names := unit.Symbols()
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
