package execution

import "fmt"

// OutcomeKind tags the raw result of a single invocation.
type OutcomeKind int

const (
	OutcomeReturned OutcomeKind = iota
	OutcomeThrown
	OutcomeTimedOut
	OutcomeCompileError
	OutcomeMissingEntryPoint
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReturned:
		return "returned"
	case OutcomeThrown:
		return "thrown"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCompileError:
		return "compile_error"
	case OutcomeMissingEntryPoint:
		return "missing_entry_point"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of invoking one entry point once. It is consumed
// immediately by the suite runner and never retained.
type Outcome struct {
	Kind    OutcomeKind
	Value   Value
	Message string
}

func Returned(v Value) Outcome { return Outcome{Kind: OutcomeReturned, Value: v} }

func Thrown(message string) Outcome { return Outcome{Kind: OutcomeThrown, Message: message} }

func TimedOut() Outcome { return Outcome{Kind: OutcomeTimedOut} }

func Cancelled() Outcome { return Outcome{Kind: OutcomeCancelled} }

func MissingEntryPoint(name string) Outcome {
	return Outcome{Kind: OutcomeMissingEntryPoint, Message: fmt.Sprintf("entry point '%s' is not defined", name)}
}

func CompileFailure(message string) Outcome {
	return Outcome{Kind: OutcomeCompileError, Message: message}
}

// CompileError reports that a submission does not parse or compile.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

const (
	messageTimedOut  = "execution timed out"
	messageCancelled = "execution cancelled"
)

// Evaluate folds an outcome into a TestResult for the given case.
func Evaluate(tc TestCase, outcome Outcome) TestResult {
	result := TestResult{Description: tc.Description}
	switch outcome.Kind {
	case OutcomeReturned:
		passed, mismatch := Match(tc.Expected, outcome.Value)
		result.Passed = passed
		result.Error = mismatch
	case OutcomeThrown:
		result.Error = "threw: " + outcome.Message
	case OutcomeTimedOut:
		result.Error = messageTimedOut
	case OutcomeCancelled:
		result.Error = messageCancelled
	case OutcomeCompileError, OutcomeMissingEntryPoint:
		result.Error = outcome.Message
	default:
		result.Error = fmt.Sprintf("internal error: unknown outcome %d", outcome.Kind)
	}
	return result
}
