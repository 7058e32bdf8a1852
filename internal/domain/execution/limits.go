package execution

import "time"

const (
	DefaultTimeLimit        = 3 * time.Second
	DefaultCompileTimeLimit = 60 * time.Second
	DefaultMemoryLimitBytes = 256 << 20
	DefaultOutputLimitBytes = 64 << 10
)

// Budget describes the resource boundaries applied to one invocation.
//
// A zero field falls back to the corresponding default in DefaultBudget.
type Budget struct {
	// TimeLimit caps how long the entry point may run.
	TimeLimit time.Duration
	// Grace is extra wall-clock time the governor allows for adapter start-up and
	// teardown before it abandons the invocation.
	Grace time.Duration
	// MemoryLimitBytes caps memory usage of the execution context.
	MemoryLimitBytes int64
	// OutputLimitBytes caps captured stdout; output beyond it is truncated.
	OutputLimitBytes int64
	// CompileTimeLimit bounds Prepare.
	CompileTimeLimit time.Duration
}

// DefaultBudget returns the fixed budget used when nothing else is configured.
func DefaultBudget() Budget {
	return Budget{
		TimeLimit:        DefaultTimeLimit,
		MemoryLimitBytes: DefaultMemoryLimitBytes,
		OutputLimitBytes: DefaultOutputLimitBytes,
		CompileTimeLimit: DefaultCompileTimeLimit,
	}
}

// Normalize clamps negative fields to zero.
func (b Budget) Normalize() Budget {
	if b.TimeLimit < 0 {
		b.TimeLimit = 0
	}
	if b.Grace < 0 {
		b.Grace = 0
	}
	if b.MemoryLimitBytes < 0 {
		b.MemoryLimitBytes = 0
	}
	if b.OutputLimitBytes < 0 {
		b.OutputLimitBytes = 0
	}
	if b.CompileTimeLimit < 0 {
		b.CompileTimeLimit = 0
	}
	return b
}

// Merge returns b with every non-positive field replaced by the value in fallback.
func (b Budget) Merge(fallback Budget) Budget {
	b = b.Normalize()
	fallback = fallback.Normalize()
	if b.TimeLimit == 0 {
		b.TimeLimit = fallback.TimeLimit
	}
	if b.Grace == 0 {
		b.Grace = fallback.Grace
	}
	if b.MemoryLimitBytes == 0 {
		b.MemoryLimitBytes = fallback.MemoryLimitBytes
	}
	if b.OutputLimitBytes == 0 {
		b.OutputLimitBytes = fallback.OutputLimitBytes
	}
	if b.CompileTimeLimit == 0 {
		b.CompileTimeLimit = fallback.CompileTimeLimit
	}
	return b
}

// Deadline is the hard wall-clock bound for one invocation.
func (b Budget) Deadline() time.Duration {
	return b.TimeLimit + b.Grace
}
