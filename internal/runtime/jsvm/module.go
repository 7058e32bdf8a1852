// Package jsvm runs JavaScript submissions in-process on the goja interpreter.
//
// A submission is parsed and compiled once. Every invocation gets a brand new
// goja.Runtime, so global bindings created by one test case are invisible to
// the next. Interruption is preemptive: goja checks its interrupt flag between
// instructions, so even a tight `while (true) {}` is stopped.
package jsvm

import (
	"context"
	"sort"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
)

const (
	sourceName = "solution.js"

	defaultMaxCallStackSize = 4096
	defaultMemoryPoll       = 20 * time.Millisecond
	defaultGrace            = 250 * time.Millisecond
)

// Config tunes the interpreter.
type Config struct {
	// MaxCallStackSize bounds recursion depth. Zero uses a default.
	MaxCallStackSize int
	// MemoryPoll is how often heap growth is sampled. Zero uses a default.
	MemoryPoll time.Duration
}

// Module implements runtime.Module for JavaScript.
type Module struct {
	cfg    Config
	logger zerolog.Logger
}

var _ runtimex.Module = (*Module)(nil)

// New constructs the JavaScript module.
func New(cfg Config, logger zerolog.Logger) *Module {
	if cfg.MaxCallStackSize <= 0 {
		cfg.MaxCallStackSize = defaultMaxCallStackSize
	}
	if cfg.MemoryPoll <= 0 {
		cfg.MemoryPoll = defaultMemoryPoll
	}
	return &Module{cfg: cfg, logger: logger.With().Str("language", string(execution.LanguageJavaScript)).Logger()}
}

func (m *Module) Language() execution.Language {
	return execution.LanguageJavaScript
}

func (m *Module) Grace() time.Duration {
	return defaultGrace
}

// Prepare parses and compiles the submission once.
func (m *Module) Prepare(ctx context.Context, sub runtimex.Submission) (runtimex.PreparedUnit, *execution.CompileError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ast, err := parser.ParseFile(nil, sourceName, sub.Code, 0)
	if err != nil {
		return nil, &execution.CompileError{Message: err.Error()}, nil
	}

	program, err := goja.CompileAST(ast, false)
	if err != nil {
		return nil, &execution.CompileError{Message: err.Error()}, nil
	}

	symbols := topLevelSymbols(ast)
	sort.Strings(symbols)

	m.logger.Debug().Strs("symbols", symbols).Msg("compiled submission")

	return &preparedProgram{
		program: program,
		symbols: symbols,
		cfg:     m.cfg,
		logger:  m.logger,
	}, nil, nil
}

func (m *Module) Close() error {
	return nil
}
