package jsvm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dop251/goja"

	"harness/internal/domain/execution"
)

const (
	maxResultDepth = 256
	maxResultNodes = 1 << 20
	pollEvery      = 1 << 10
)

var (
	errResultTooDeep  = errors.New("TypeError: returned value is nested too deeply or cyclic")
	errResultTooLarge = errors.New("RangeError: result too large")

	errResultTimedOut  = errors.New("result conversion timed out")
	errResultCancelled = errors.New("result conversion cancelled")
)

// toJS converts an argument to a JavaScript value. Map entries are defined in
// order, so Object.keys observes the same order the test case declared.
func toJS(vm *goja.Runtime, v execution.Value) goja.Value {
	switch v.Kind() {
	case execution.KindBool:
		return vm.ToValue(v.AsBool())
	case execution.KindNumber:
		if v.IsInteger() && math.Abs(v.AsNumber()) < 1<<53 {
			return vm.ToValue(int64(v.AsNumber()))
		}
		return vm.ToValue(v.AsNumber())
	case execution.KindString:
		return vm.ToValue(v.AsString())
	case execution.KindSequence:
		items := make([]interface{}, len(v.Items()))
		for i, item := range v.Items() {
			items[i] = toJS(vm, item)
		}
		return vm.NewArray(items...)
	case execution.KindMap:
		obj := vm.NewObject()
		for _, entry := range v.Entries() {
			_ = obj.Set(entry.Key, toJS(vm, entry.Value))
		}
		return obj
	default:
		return goja.Null()
	}
}

// resultReader converts a returned JavaScript value. undefined becomes null,
// arrays become sequences and other objects become maps of their own
// enumerable keys. The walk runs after the interpreter has returned, so it
// bounds the number of nodes it visits and polls ctx and the deadline itself.
type resultReader struct {
	ctx      context.Context
	deadline time.Time
	maxNodes int
	nodes    int
}

func newResultReader(ctx context.Context, deadline time.Time) *resultReader {
	return &resultReader{ctx: ctx, deadline: deadline, maxNodes: maxResultNodes}
}

// visit accounts for n more nodes.
func (r *resultReader) visit(n int64) error {
	if n > int64(r.maxNodes-r.nodes) {
		return errResultTooLarge
	}
	before := r.nodes
	r.nodes += int(n)
	if before/pollEvery == r.nodes/pollEvery {
		return nil
	}
	if r.ctx.Err() != nil {
		return errResultCancelled
	}
	if !r.deadline.IsZero() && time.Now().After(r.deadline) {
		return errResultTimedOut
	}
	return nil
}

func (r *resultReader) read(v goja.Value, depth int) (execution.Value, error) {
	if depth > maxResultDepth {
		return execution.Value{}, errResultTooDeep
	}
	if err := r.visit(1); err != nil {
		return execution.Value{}, err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return execution.Null(), nil
	}

	if obj, ok := v.(*goja.Object); ok {
		switch obj.ClassName() {
		case "Array":
			length := obj.Get("length").ToInteger()
			// A sparse array with a huge length is rejected before the walk.
			if length < 0 || length > int64(r.maxNodes-r.nodes) {
				return execution.Value{}, errResultTooLarge
			}
			var items []execution.Value
			for i := int64(0); i < length; i++ {
				item, err := r.read(obj.Get(strconv.FormatInt(i, 10)), depth+1)
				if err != nil {
					return execution.Value{}, err
				}
				items = append(items, item)
			}
			return execution.Sequence(items...), nil
		case "Function":
			return execution.Value{}, errors.New("TypeError: cannot return a function")
		case "Number", "String", "Boolean":
			return fromPrimitive(obj.Export())
		default:
			keys := obj.Keys()
			if err := r.visit(int64(len(keys))); err != nil {
				return execution.Value{}, err
			}
			entries := make([]execution.Entry, 0, len(keys))
			for _, key := range keys {
				item, err := r.read(obj.Get(key), depth+1)
				if err != nil {
					return execution.Value{}, err
				}
				entries = append(entries, execution.Entry{Key: key, Value: item})
			}
			return execution.Map(entries...), nil
		}
	}

	return fromPrimitive(v.Export())
}

func fromPrimitive(exported interface{}) (execution.Value, error) {
	switch x := exported.(type) {
	case nil:
		return execution.Null(), nil
	case bool:
		return execution.Bool(x), nil
	case int64:
		return execution.Int(x), nil
	case float64:
		value, err := execution.NewNumber(x)
		if err != nil {
			return execution.Value{}, fmt.Errorf("TypeError: returned %s", strconv.FormatFloat(x, 'g', -1, 64))
		}
		return value, nil
	case string:
		return execution.String(x), nil
	default:
		return execution.String(fmt.Sprint(x)), nil
	}
}
