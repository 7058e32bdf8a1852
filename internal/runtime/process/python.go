package process

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
)

const (
	pythonInterpreter    = "python3"
	pythonSourceFilename = "solution.py"
	pythonDriverFilename = "harness_driver.py"
)

//go:embed drivers/python_driver.py
var pythonDriver []byte

type pythonStrategy struct{}

// prepare runs the probe driver, which parses and compiles the source without
// executing it and lists its top-level names.
func (pythonStrategy) prepare(ctx context.Context, m *Module, sub runtimex.Submission) (runtimex.PreparedUnit, *execution.CompileError, error) {
	files := pythonFiles(sub.Code)
	limits := m.compileLimits(ctx)

	result, err := m.sandbox.Run(ctx, runtimex.Job{
		Language: execution.LanguagePython,
		Command:  []string{pythonInterpreter, pythonDriverFilename, "probe", strconv.FormatInt(limits.MemoryLimitBytes, 10)},
		Files:    files,
		Limits:   limits,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("python probe: %w", err)
	}
	if result.Status == execution.StatusTimeLimit {
		return nil, &execution.CompileError{Message: "compilation timed out"}, nil
	}

	env, ok := findEnvelope(result.Stderr)
	if !ok {
		return nil, nil, fmt.Errorf("python probe: no result reported: %s", crashMessage(result))
	}
	if !env.OK {
		return nil, &execution.CompileError{Message: env.Error}, nil
	}

	var symbols []string
	if err := json.Unmarshal(env.Value, &symbols); err != nil {
		return nil, nil, fmt.Errorf("python probe: decode symbols: %w", err)
	}

	return &pythonUnit{module: m, files: files, symbols: symbols}, nil, nil
}

func pythonFiles(code string) []runtimex.File {
	return []runtimex.File{
		{Name: pythonSourceFilename, Mode: 0o644, Data: []byte(code)},
		{Name: pythonDriverFilename, Mode: 0o644, Data: pythonDriver},
	}
}

type pythonUnit struct {
	module  *Module
	files   []runtimex.File
	symbols []string
}

type pythonCall struct {
	EntryPoint string            `json:"entryPoint"`
	Arguments  []execution.Value `json:"arguments"`
}

func (p *pythonUnit) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// Invoke starts a new interpreter that loads the source and calls the entry
// point with the arguments it reads from stdin.
func (p *pythonUnit) Invoke(ctx context.Context, call runtimex.Call, budget execution.Budget) execution.Outcome {
	payload, err := json.Marshal(pythonCall{EntryPoint: call.EntryPoint, Arguments: call.Arguments})
	if err != nil {
		return execution.Thrown(fmt.Sprintf("internal error: encode call: %v", err))
	}

	budget = budget.Merge(execution.DefaultBudget())
	result, failed := p.module.run(ctx, runtimex.Job{
		Command: []string{pythonInterpreter, pythonDriverFilename, "call", strconv.FormatInt(budget.MemoryLimitBytes, 10)},
		Files:   p.files,
		Stdin:   string(payload),
		Limits:  budget,
	})
	if failed != nil {
		return *failed
	}
	return interpret(result, call.EntryPoint)
}

func (p *pythonUnit) Close() error {
	return nil
}
