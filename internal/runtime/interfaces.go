package runtime

import (
	"context"
	"time"

	"harness/internal/domain/execution"
)

// Call is a single planned invocation of an entry point.
type Call struct {
	EntryPoint string
	Arguments  []execution.Value
}

// Submission is the source handed to an adapter together with the calls the
// suite runner intends to make. Adapters with static dispatch compile the call
// plan into the program; dynamic adapters ignore it.
type Submission struct {
	Language execution.Language
	Code     string
	Calls    []Call
}

// PreparedUnit is a parsed or compiled submission. It is reused across
// invocations of one request, but every Invoke runs in a fresh scope.
type PreparedUnit interface {
	// Symbols lists the top-level names the submission defines.
	Symbols() []string
	Invoke(ctx context.Context, call Call, budget execution.Budget) execution.Outcome
	Close() error
}

// Module provides runtime support for a specific language.
type Module interface {
	Language() execution.Language
	// Prepare parses or compiles the submission. A non-nil CompileError means the
	// code is invalid; a non-nil error is a host fault.
	Prepare(ctx context.Context, sub Submission) (PreparedUnit, *execution.CompileError, error)
	// Grace is the start-up allowance added to every invocation's hard deadline.
	Grace() time.Duration
	Close() error
}

// Engine resolves the module responsible for a language.
type Engine interface {
	Module(lang execution.Language) (Module, error)
	Languages() []execution.Language
	Close() error
}
