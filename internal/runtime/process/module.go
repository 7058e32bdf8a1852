// Package process runs submissions as short-lived processes inside a
// runtime.Sandbox. Every invocation starts a new process, so no state survives
// between test cases.
//
// Results travel back on stderr as a single marker-prefixed JSON line written
// by a driver: a Python script for the interpreter, and a generated dispatcher
// main for compiled languages.
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
)

const (
	defaultGrace              = 2 * time.Second
	defaultCompileMemoryLimit = 1 << 30
	compileOutputLimit        = 256 << 10
)

type strategy interface {
	prepare(ctx context.Context, m *Module, sub runtimex.Submission) (runtimex.PreparedUnit, *execution.CompileError, error)
}

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the module logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// WithGrace overrides the start-up allowance reported to the governor.
func WithGrace(grace time.Duration) Option {
	return func(m *Module) {
		if grace > 0 {
			m.grace = grace
		}
	}
}

// WithCompileMemoryLimit bounds memory available to compilers and probes.
func WithCompileMemoryLimit(limit int64) Option {
	return func(m *Module) {
		if limit > 0 {
			m.compileMemory = limit
		}
	}
}

// Module implements runtime.Module for one process-backed language.
type Module struct {
	language      execution.Language
	sandbox       runtimex.Sandbox
	strategy      strategy
	logger        zerolog.Logger
	grace         time.Duration
	compileMemory int64
}

var _ runtimex.Module = (*Module)(nil)

// New builds the module for lang on top of the shared sandbox. The sandbox is
// owned by the caller and is not closed by the module.
func New(lang execution.Language, sandbox runtimex.Sandbox, opts ...Option) (*Module, error) {
	if sandbox == nil {
		return nil, fmt.Errorf("process runtime: sandbox must not be nil")
	}

	strategy, err := strategyForLanguage(lang)
	if err != nil {
		return nil, err
	}

	m := &Module{
		language:      lang,
		sandbox:       sandbox,
		strategy:      strategy,
		logger:        zerolog.Nop(),
		grace:         defaultGrace,
		compileMemory: defaultCompileMemoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("language", string(lang)).Logger()

	return m, nil
}

func strategyForLanguage(lang execution.Language) (strategy, error) {
	switch lang {
	case execution.LanguagePython:
		return pythonStrategy{}, nil
	case execution.LanguageRust:
		return &compiledStrategy{language: lang, toolchain: rustToolchain{}}, nil
	case execution.LanguageKotlin:
		return &compiledStrategy{language: lang, toolchain: kotlinToolchain{}}, nil
	case execution.LanguageSwift:
		return &compiledStrategy{language: lang, toolchain: swiftToolchain{}}, nil
	default:
		return nil, fmt.Errorf("process runtime: no strategy registered for language %q", lang)
	}
}

func (m *Module) Language() execution.Language {
	return m.language
}

func (m *Module) Grace() time.Duration {
	return m.grace
}

func (m *Module) Prepare(ctx context.Context, sub runtimex.Submission) (runtimex.PreparedUnit, *execution.CompileError, error) {
	if sub.Language != "" && sub.Language != m.language {
		return nil, nil, fmt.Errorf("process runtime: submission language %q does not match module %q", sub.Language, m.language)
	}

	start := time.Now()
	unit, compileErr, err := m.strategy.prepare(ctx, m, sub)
	m.logger.Debug().
		Dur("duration", time.Since(start)).
		Bool("compile_error", compileErr != nil).
		Err(err).
		Msg("prepared submission")
	return unit, compileErr, err
}

func (m *Module) Close() error {
	return nil
}

// compileLimits derives the budget for probes and compilers from the
// deadline the runner placed on ctx.
func (m *Module) compileLimits(ctx context.Context) execution.Budget {
	limits := execution.Budget{
		TimeLimit:        execution.DefaultCompileTimeLimit,
		MemoryLimitBytes: m.compileMemory,
		OutputLimitBytes: compileOutputLimit,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			limits.TimeLimit = remaining
		}
	}
	return limits
}

// run executes a job and maps a failed sandbox call to an outcome.
func (m *Module) run(ctx context.Context, job runtimex.Job) (*execution.Result, *execution.Outcome) {
	job.Language = m.language
	result, err := m.sandbox.Run(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			outcome := execution.Cancelled()
			return nil, &outcome
		}
		m.logger.Error().Err(err).Strs("command", job.Command).Msg("sandbox run failed")
		outcome := execution.Thrown(fmt.Sprintf("internal error: %v", err))
		return nil, &outcome
	}
	return result, nil
}
