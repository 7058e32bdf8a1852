package execution

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNonFiniteNumber is returned when a NaN or infinite number enters the value model.
var ErrNonFiniteNumber = errors.New("non-finite numbers are not supported")

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Entry is a single key/value pair of an ordered map.
type Entry struct {
	Key   string
	Value Value
}

// Value is the language-agnostic data model exchanged between the harness
// and every language adapter. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	text    string
	items   []Value
	entries []Entry
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number wraps a float64. Use NewNumber when the input may be non-finite.
func Number(f float64) Value { return Value{kind: KindNumber, number: f} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindNumber, number: float64(i)} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Sequence wraps an ordered list of values.
func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, items: items}
}

// Map builds an ordered map. Later duplicates of a key replace the earlier value
// but keep its original position.
func Map(entries ...Entry) Value {
	out := make([]Entry, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		if pos, ok := index[e.Key]; ok {
			out[pos].Value = e.Value
			continue
		}
		index[e.Key] = len(out)
		out = append(out, e)
	}
	return Value{kind: KindMap, entries: out}
}

// NewNumber wraps f, rejecting NaN and infinities.
func NewNumber(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, ErrNonFiniteNumber
	}
	return Number(f), nil
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) AsBool() bool { return v.boolean }
func (v Value) AsNumber() float64 { return v.number }
func (v Value) AsString() string { return v.text }
func (v Value) Items() []Value { return v.items }
func (v Value) Entries() []Entry { return v.entries }
func (v Value) Len() int { return len(v.items) + len(v.entries) }

// Lookup returns the map value stored under key.
func (v Value) Lookup(key string) (Value, bool) {
	for _, e := range v.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// IsInteger reports whether v is a number without a fractional part that fits an int64.
func (v Value) IsInteger() bool {
	if v.kind != KindNumber {
		return false
	}
	return v.number == math.Trunc(v.number) && math.Abs(v.number) < 1<<63
}

// Finite reports whether every number reachable from v is finite.
func (v Value) Finite() bool {
	switch v.kind {
	case KindNumber:
		return !math.IsNaN(v.number) && !math.IsInf(v.number, 0)
	case KindSequence:
		for _, item := range v.items {
			if !item.Finite() {
				return false
			}
		}
	case KindMap:
		for _, e := range v.entries {
			if !e.Value.Finite() {
				return false
			}
		}
	}
	return true
}

// String renders v in a compact JSON-like notation used in failure messages.
func (v Value) String() string {
	var b strings.Builder
	v.render(&b)
	return b.String()
}

func (v Value) render(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		b.WriteString(FormatNumber(v.number))
	case KindString:
		b.WriteString(strconv.Quote(v.text))
	case KindSequence:
		b.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				b.WriteString(", ")
			}
			item.render(b)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(e.Key))
			b.WriteString(": ")
			e.Value.render(b)
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "<%s>", v.kind)
	}
}

// FormatNumber prints integral values without a fractional part and everything
// else in the shortest representation that round-trips.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
