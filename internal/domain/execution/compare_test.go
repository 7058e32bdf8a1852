package execution

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualFloatingPointRounding(t *testing.T) {
	t.Parallel()

	assert.True(t, Equal(Number(0.1+0.2), Number(0.3)))
	assert.False(t, Equal(Number(0.3001), Number(0.3)))
	assert.True(t, Equal(Number(1e12+1e-4), Number(1e12)))
}

func TestEqualIntegersCompareExactly(t *testing.T) {
	t.Parallel()

	assert.False(t, Equal(Int(1000000001), Int(1000000000)))
	assert.False(t, Equal(Int(6227020800), Int(6227020805)))
	assert.True(t, Equal(Int(6227020800), Number(6227020800)))

	ok, msg := Match(Equals(Int(6227020800)), Int(6227020805))
	assert.False(t, ok)
	assert.Equal(t, "expected 6227020800, got 6227020805", msg)

	nested := Map(Entry{Key: "total", Value: Int(1000000000)})
	assert.False(t, Equal(nested, Map(Entry{Key: "total", Value: Int(1000000001)})))

	approx := Satisfies(Predicate{Kind: PredicateApprox, Value: Int(1000000000), Epsilon: 1e-6})
	ok, _ = Match(approx, Int(1000000001))
	assert.True(t, ok, "approx keeps its tolerance for integers")
}

func TestEqualStructural(t *testing.T) {
	t.Parallel()

	a := Map(Entry{Key: "x", Value: Sequence(Int(1), Int(2))}, Entry{Key: "y", Value: Null()})
	b := Map(Entry{Key: "y", Value: Null()}, Entry{Key: "x", Value: Sequence(Int(1), Int(2))})
	assert.True(t, Equal(a, b), "maps compare without regard to key order")

	assert.False(t, Equal(Sequence(Int(1), Int(2)), Sequence(Int(2), Int(1))))
	assert.False(t, Equal(String("1"), Int(1)))
	assert.False(t, Equal(Null(), Bool(false)))
}

func TestMatchLiteralMismatchMessage(t *testing.T) {
	t.Parallel()

	ok, msg := Match(Equals(Int(6)), Int(5))
	assert.False(t, ok)
	assert.Equal(t, "expected 6, got 5", msg)

	ok, msg = Match(Equals(String("a")), String("b"))
	assert.False(t, ok)
	assert.Equal(t, `expected "a", got "b"`, msg)
}

func TestMatchPredicates(t *testing.T) {
	t.Parallel()

	approx := Satisfies(Predicate{Kind: PredicateApprox, Value: Number(3.14159), Epsilon: 1e-3})
	ok, _ := Match(approx, Number(3.1416))
	assert.True(t, ok)
	ok, msg := Match(approx, Number(3.2))
	assert.False(t, ok)
	assert.Contains(t, msg, "approximately 3.14159")

	anyOf := Satisfies(Predicate{Kind: PredicateAnyOf, Values: []Value{Sequence(Int(0), Int(1)), Sequence(Int(1), Int(0))}})
	ok, _ = Match(anyOf, Sequence(Int(1), Int(0)))
	assert.True(t, ok)
	ok, _ = Match(anyOf, Sequence(Int(1), Int(1)))
	assert.False(t, ok)

	unordered := Satisfies(Predicate{Kind: PredicateUnordered, Value: Sequence(Int(1), Int(2), Int(2))})
	ok, _ = Match(unordered, Sequence(Int(2), Int(1), Int(2)))
	assert.True(t, ok)
	ok, _ = Match(unordered, Sequence(Int(2), Int(1), Int(1)))
	assert.False(t, ok)
}

func TestPredicateValidation(t *testing.T) {
	t.Parallel()

	assert.Error(t, Predicate{Kind: "regex"}.Validate())
	assert.Error(t, Predicate{Kind: PredicateAnyOf}.Validate())
	assert.Error(t, Predicate{Kind: PredicateUnordered, Value: Int(1)}.Validate())
	assert.NoError(t, Predicate{Kind: PredicateApprox, Value: Int(1)}.Validate())
}

func TestTestCaseJSON(t *testing.T) {
	t.Parallel()

	var tc TestCase
	require.NoError(t, json.Unmarshal([]byte(`{"description":"adds","entryPoint":"add","arguments":[2,3],"expected":5}`), &tc))
	assert.Equal(t, "add", tc.EntryPoint)
	require.Len(t, tc.Arguments, 2)
	assert.Nil(t, tc.Expected.Predicate)
	assert.True(t, Equal(Int(5), tc.Expected.Literal))

	var withPredicate TestCase
	require.NoError(t, json.Unmarshal([]byte(`{"description":"pi","entryPoint":"pi","arguments":[],"expected":3,"predicate":{"kind":"approx","value":3.14,"epsilon":0.01}}`), &withPredicate))
	require.NotNil(t, withPredicate.Expected.Predicate)
	assert.Equal(t, PredicateApprox, withPredicate.Expected.Predicate.Kind)

	assert.Error(t, TestCase{Description: "blank"}.Validate())
	assert.Error(t, TestCase{Description: "bad", EntryPoint: "a b"}.Validate())
}

func TestEvaluateOutcomes(t *testing.T) {
	t.Parallel()

	tc := TestCase{Description: "adds", EntryPoint: "add", Expected: Equals(Int(5))}

	assert.Equal(t, TestResult{Description: "adds", Passed: true}, Evaluate(tc, Returned(Int(5))))
	assert.Equal(t, "expected 5, got 4", Evaluate(tc, Returned(Int(4))).Error)
	assert.Equal(t, "threw: boom", Evaluate(tc, Thrown("boom")).Error)
	assert.Equal(t, "execution timed out", Evaluate(tc, TimedOut()).Error)
	assert.Equal(t, "entry point 'add' is not defined", Evaluate(tc, MissingEntryPoint("add")).Error)
	assert.Equal(t, "execution cancelled", Evaluate(tc, Cancelled()).Error)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	assert.False(t, Summarize(nil).AllPassed)
	assert.NotNil(t, Summarize(nil).Results)
	assert.True(t, Summarize([]TestResult{{Passed: true}, {Passed: true}}).AllPassed)
	assert.False(t, Summarize([]TestResult{{Passed: true}, {Passed: false, Error: "x"}}).AllPassed)

	encoded, err := json.Marshal(Summarize([]TestResult{{Description: "adds", Passed: true}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"description":"adds","passed":true,"error":null}],"allPassed":true}`, string(encoded))
}

func TestBudgetMerge(t *testing.T) {
	t.Parallel()

	merged := Budget{TimeLimit: -1, OutputLimitBytes: 10}.Merge(DefaultBudget())
	assert.Equal(t, DefaultTimeLimit, merged.TimeLimit)
	assert.Equal(t, int64(10), merged.OutputLimitBytes)
	assert.Equal(t, int64(DefaultMemoryLimitBytes), merged.MemoryLimitBytes)
}
