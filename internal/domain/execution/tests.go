package execution

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ValidIdentifier reports whether name can be used as an entry point in every
// supported language.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// TestCase describes a single behavioural expectation for a submission.
type TestCase struct {
	Description string      `json:"description"`
	EntryPoint  string      `json:"entryPoint"`
	Arguments   []Value     `json:"arguments"`
	Expected    Expectation `json:"-"`
}

// Validate checks the structural invariants of a test case.
func (tc TestCase) Validate() error {
	if tc.EntryPoint == "" {
		return fmt.Errorf("test case %q: entry point is required", tc.Description)
	}
	if !ValidIdentifier(tc.EntryPoint) {
		return fmt.Errorf("test case %q: entry point %q is not a valid identifier", tc.Description, tc.EntryPoint)
	}
	return tc.Expected.Validate()
}

type testCaseJSON struct {
	Description string     `json:"description"`
	EntryPoint  string     `json:"entryPoint"`
	Arguments   []Value    `json:"arguments"`
	Expected    *Value     `json:"expected,omitempty"`
	Predicate   *Predicate `json:"predicate,omitempty"`
}

// MarshalJSON encodes the expectation either as "expected" or as "predicate".
func (tc TestCase) MarshalJSON() ([]byte, error) {
	wire := testCaseJSON{
		Description: tc.Description,
		EntryPoint:  tc.EntryPoint,
		Arguments:   tc.Arguments,
	}
	if wire.Arguments == nil {
		wire.Arguments = []Value{}
	}
	if tc.Expected.Predicate != nil {
		wire.Predicate = tc.Expected.Predicate
	} else {
		literal := tc.Expected.Literal
		wire.Expected = &literal
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a test case; a "predicate" member wins over "expected".
func (tc *TestCase) UnmarshalJSON(data []byte) error {
	var wire testCaseJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	tc.Description = wire.Description
	tc.EntryPoint = wire.EntryPoint
	tc.Arguments = wire.Arguments
	tc.Expected = Expectation{}
	switch {
	case wire.Predicate != nil:
		tc.Expected.Predicate = wire.Predicate
	case wire.Expected != nil:
		tc.Expected.Literal = *wire.Expected
	}
	return nil
}

// Expectation is either a literal value compared structurally, or a predicate.
type Expectation struct {
	Literal   Value
	Predicate *Predicate
}

// Equals builds a literal expectation.
func Equals(v Value) Expectation { return Expectation{Literal: v} }

// Satisfies builds a predicate expectation.
func Satisfies(p Predicate) Expectation { return Expectation{Predicate: &p} }

// Validate checks the predicate, if any.
func (e Expectation) Validate() error {
	if e.Predicate == nil {
		return nil
	}
	return e.Predicate.Validate()
}

// Describe renders the expectation for failure messages.
func (e Expectation) Describe() string {
	if e.Predicate != nil {
		return e.Predicate.Describe()
	}
	return e.Literal.String()
}

// PredicateKind names a supported predicate.
type PredicateKind string

const (
	// PredicateApprox matches numbers within Epsilon of Value, recursively through
	// sequences and maps.
	PredicateApprox PredicateKind = "approx"
	// PredicateAnyOf matches when the actual value equals one of Values.
	PredicateAnyOf PredicateKind = "anyOf"
	// PredicateUnordered matches sequences holding the same elements in any order.
	PredicateUnordered PredicateKind = "unordered"
)

// Predicate is a declarative matcher used instead of a literal expectation.
type Predicate struct {
	Kind    PredicateKind `json:"kind"`
	Value   Value         `json:"value"`
	Values  []Value       `json:"values,omitempty"`
	Epsilon float64       `json:"epsilon,omitempty"`
}

// Validate checks that the predicate is well formed.
func (p Predicate) Validate() error {
	switch p.Kind {
	case PredicateApprox:
		if p.Epsilon < 0 {
			return fmt.Errorf("approx predicate: epsilon must not be negative")
		}
	case PredicateAnyOf:
		if len(p.Values) == 0 {
			return fmt.Errorf("anyOf predicate: at least one candidate value is required")
		}
	case PredicateUnordered:
		if p.Value.Kind() != KindSequence {
			return fmt.Errorf("unordered predicate: value must be a sequence")
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	return nil
}

// Describe renders the predicate for failure messages.
func (p Predicate) Describe() string {
	switch p.Kind {
	case PredicateApprox:
		return fmt.Sprintf("approximately %s (±%s)", p.Value, FormatNumber(p.epsilon()))
	case PredicateAnyOf:
		return fmt.Sprintf("any of %s", Sequence(p.Values...))
	case PredicateUnordered:
		return fmt.Sprintf("%s in any order", p.Value)
	default:
		return string(p.Kind)
	}
}

func (p Predicate) epsilon() float64 {
	if p.Epsilon > 0 {
		return p.Epsilon
	}
	return DefaultEpsilon
}
