package execution

import (
	"fmt"
	"math"
)

// DefaultEpsilon is the tolerance used when comparing non-integral numbers. Two
// numbers a and b are equal when |a-b| <= eps * max(1, |a|, |b|). Two integral
// numbers must match exactly.
const DefaultEpsilon = 1e-9

// Equal compares two values structurally. Integers compare exactly and other
// numbers within DefaultEpsilon. Sequences compare element-wise in order; maps
// compare by key set, ignoring key order.
func Equal(a, b Value) bool {
	return equalWithin(a, b, DefaultEpsilon, true)
}

// equalWithin compares a and b structurally. With exactInts set, a pair of
// integral numbers bypasses eps.
func equalWithin(a, b Value, eps float64, exactInts bool) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		if exactInts && a.IsInteger() && b.IsInteger() {
			return a.number == b.number
		}
		return numbersClose(a.number, b.number, eps)
	case KindString:
		return a.text == b.text
	case KindSequence:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !equalWithin(a.items[i], b.items[i], eps, exactInts) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.entries) != len(b.entries) {
			return false
		}
		for _, e := range a.entries {
			other, ok := b.Lookup(e.Key)
			if !ok || !equalWithin(e.Value, other, eps, exactInts) {
				return false
			}
		}
		return true
	}
	return false
}

func numbersClose(a, b, eps float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= eps*scale
}

// Match evaluates actual against the expectation. When it does not match the
// returned string describes the mismatch, e.g. "expected 6, got 5".
func Match(expected Expectation, actual Value) (bool, string) {
	var ok bool
	if expected.Predicate == nil {
		ok = Equal(expected.Literal, actual)
	} else {
		ok = expected.Predicate.matches(actual)
	}
	if ok {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s, got %s", expected.Describe(), actual)
}

func (p Predicate) matches(actual Value) bool {
	switch p.Kind {
	case PredicateApprox:
		return equalWithin(p.Value, actual, p.epsilon(), false)
	case PredicateAnyOf:
		for _, candidate := range p.Values {
			if Equal(candidate, actual) {
				return true
			}
		}
		return false
	case PredicateUnordered:
		return unorderedEqual(p.Value, actual)
	}
	return false
}

func unorderedEqual(expected, actual Value) bool {
	if expected.kind != KindSequence || actual.kind != KindSequence {
		return false
	}
	if len(expected.items) != len(actual.items) {
		return false
	}
	used := make([]bool, len(actual.items))
	for _, want := range expected.items {
		found := false
		for i, got := range actual.items {
			if used[i] || !Equal(want, got) {
				continue
			}
			used[i] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}
