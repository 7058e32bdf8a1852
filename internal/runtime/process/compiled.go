package process

import (
	"context"
	"fmt"
	"sort"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
)

// toolchain knows how to turn a submission plus its call plan into one
// program with a dispatcher main, and how to run it.
type toolchain interface {
	sourceName() string
	artifactName() string
	compileCommand() []string
	runCommand(index int, budget execution.Budget) []string
	signatures(source string) []signature
	program(source string, calls []plannedCall) (string, error)
}

// plannedCall is a call compiled into the dispatcher under index.
type plannedCall struct {
	index int
	call  runtimex.Call
	sig   signature
}

func (s signature) paramType(i int) string {
	if i < len(s.params) {
		return s.params[i].typ
	}
	return ""
}

func (s signature) paramLabel(i int) string {
	if i < len(s.params) {
		return s.params[i].label
	}
	return ""
}

// callKey identifies a call by entry point and rendered arguments, so that
// repeated identical calls share one dispatcher branch.
func callKey(call runtimex.Call) string {
	return call.EntryPoint + execution.Sequence(call.Arguments...).String()
}

// planCalls assigns dispatcher indexes to every distinct call whose entry
// point is declared. Calls to undeclared functions are left out; the runner
// reports them as missing without invoking.
func planCalls(calls []runtimex.Call, declared map[string]signature) ([]plannedCall, map[string]int) {
	var plan []plannedCall
	index := make(map[string]int)
	for _, call := range calls {
		sig, ok := declared[call.EntryPoint]
		if !ok {
			continue
		}
		key := callKey(call)
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(plan)
		plan = append(plan, plannedCall{index: len(plan), call: call, sig: sig})
	}
	return plan, index
}

type compiledStrategy struct {
	language  execution.Language
	toolchain toolchain
}

// prepare compiles the submission once, with every planned call baked into
// the dispatcher, and keeps the resulting artifact for the invocations.
func (c *compiledStrategy) prepare(ctx context.Context, m *Module, sub runtimex.Submission) (runtimex.PreparedUnit, *execution.CompileError, error) {
	sigs := c.toolchain.signatures(sub.Code)
	declared := make(map[string]signature, len(sigs))
	symbols := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		if sig.name == "main" {
			continue
		}
		declared[sig.name] = sig
		symbols = append(symbols, sig.name)
	}
	sort.Strings(symbols)

	plan, index := planCalls(sub.Calls, declared)
	artifact, failure, err := c.build(ctx, m, sub.Code, plan)
	if err != nil {
		return nil, nil, err
	}

	rejected := make(map[string]string)
	if failure != nil {
		if !failure.diagnostic || len(plan) == 0 {
			return nil, &execution.CompileError{Message: failure.message}, nil
		}
		accepted, dropped, bad, err := c.isolate(ctx, m, sub.Code, plan)
		if err != nil {
			return nil, nil, err
		}
		if bad != nil {
			return nil, &execution.CompileError{Message: bad.message}, nil
		}
		for _, call := range dropped {
			rejected[callKey(call.call)] = fmt.Sprintf("argument types do not match the signature of '%s'", call.sig.name)
		}
		plan, index = reindex(accepted)
		m.logger.Debug().Int("rejected", len(dropped)).Msg("dropped calls the compiler rejected")

		artifact, failure, err = c.build(ctx, m, sub.Code, plan)
		if err != nil {
			return nil, nil, err
		}
		if failure != nil {
			return nil, &execution.CompileError{Message: failure.message}, nil
		}
	}

	m.logger.Debug().Int("calls", len(plan)).Int("artifact_bytes", len(artifact)).Msg("compiled dispatcher")

	return &compiledUnit{
		module:    m,
		toolchain: c.toolchain,
		artifact:  artifact,
		symbols:   symbols,
		index:     index,
		rejected:  rejected,
	}, nil, nil
}

// buildFailure is a build that produced no artifact. diagnostic is set when
// the compiler ran to completion and reported errors, as opposed to running
// out of time or memory.
type buildFailure struct {
	message    string
	diagnostic bool
}

// build compiles source with a dispatcher for plan.
func (c *compiledStrategy) build(ctx context.Context, m *Module, source string, plan []plannedCall) ([]byte, *buildFailure, error) {
	program, err := c.toolchain.program(source, plan)
	if err != nil {
		return nil, &buildFailure{message: err.Error()}, nil
	}

	result, err := m.sandbox.Run(ctx, runtimex.Job{
		Language: c.language,
		Command:  c.toolchain.compileCommand(),
		Files: []runtimex.File{
			{Name: c.toolchain.sourceName(), Mode: 0o644, Data: []byte(program)},
		},
		Limits:  m.compileLimits(ctx),
		Collect: c.toolchain.artifactName(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%s build: %w", c.language, err)
	}

	switch {
	case result.Status == execution.StatusTimeLimit:
		return nil, &buildFailure{message: "compilation timed out"}, nil
	case result.Status == execution.StatusMemoryLimit:
		return nil, &buildFailure{message: "compilation exceeded the memory limit"}, nil
	case result.ExitCode != 0 || result.Status != execution.StatusOK:
		return nil, &buildFailure{message: compilerOutput(result), diagnostic: true}, nil
	case len(result.Artifact) == 0:
		return nil, nil, fmt.Errorf("%s build: compiler produced no %s", c.language, c.toolchain.artifactName())
	}
	return result.Artifact, nil, nil
}

// isolate runs after the full dispatcher failed to build. When the bare
// submission does not build either, that failure is returned and the
// submission itself is at fault. Otherwise the plan is bisected into the
// calls that build and the calls the compiler rejects.
func (c *compiledStrategy) isolate(ctx context.Context, m *Module, source string, plan []plannedCall) (accepted, rejected []plannedCall, failure *buildFailure, err error) {
	if _, failure, err := c.build(ctx, m, source, nil); err != nil || failure != nil {
		return nil, nil, failure, err
	}

	var split func(calls []plannedCall) error
	split = func(calls []plannedCall) error {
		if len(calls) == 1 {
			rejected = append(rejected, calls[0])
			return nil
		}
		mid := len(calls) / 2
		for _, half := range [][]plannedCall{calls[:mid], calls[mid:]} {
			part, _ := reindex(half)
			_, bad, err := c.build(ctx, m, source, part)
			switch {
			case err != nil:
				return err
			case bad == nil:
				accepted = append(accepted, half...)
			case !bad.diagnostic:
				failure = bad
				return nil
			default:
				if err := split(half); err != nil {
					return err
				}
			}
			if failure != nil {
				return nil
			}
		}
		return nil
	}

	if err := split(plan); err != nil {
		return nil, nil, nil, err
	}
	if failure != nil {
		return nil, nil, failure, nil
	}
	sortPlan(accepted)
	return accepted, rejected, nil, nil
}

// reindex renumbers calls densely in order.
func reindex(calls []plannedCall) ([]plannedCall, map[string]int) {
	plan := make([]plannedCall, len(calls))
	index := make(map[string]int, len(calls))
	for i, call := range calls {
		call.index = i
		plan[i] = call
		index[callKey(call.call)] = i
	}
	return plan, index
}

func sortPlan(calls []plannedCall) {
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].index < calls[j].index })
}

type compiledUnit struct {
	module    *Module
	toolchain toolchain
	artifact  []byte
	symbols   []string
	index     map[string]int
	// rejected maps calls the compiler refused to the message they report.
	rejected  map[string]string
}

func (u *compiledUnit) Symbols() []string {
	return append([]string(nil), u.symbols...)
}

// Invoke runs the compiled artifact in a new process, selecting the
// dispatcher branch for call.
func (u *compiledUnit) Invoke(ctx context.Context, call runtimex.Call, budget execution.Budget) execution.Outcome {
	key := callKey(call)
	if message, ok := u.rejected[key]; ok {
		return execution.Thrown(message)
	}
	idx, ok := u.index[key]
	if !ok {
		if i := sort.SearchStrings(u.symbols, call.EntryPoint); i == len(u.symbols) || u.symbols[i] != call.EntryPoint {
			return execution.MissingEntryPoint(call.EntryPoint)
		}
		return execution.Thrown("internal error: call was not compiled into the program")
	}

	budget = budget.Merge(execution.DefaultBudget())
	result, failed := u.module.run(ctx, runtimex.Job{
		Command: u.toolchain.runCommand(idx, budget),
		Files: []runtimex.File{
			{Name: u.toolchain.artifactName(), Mode: 0o755, Data: u.artifact},
		},
		Limits: budget,
	})
	if failed != nil {
		return *failed
	}
	return interpret(result, call.EntryPoint)
}

func (u *compiledUnit) Close() error {
	u.artifact = nil
	return nil
}
