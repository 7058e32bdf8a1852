package jsvm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
	"harness/internal/runtime/governor"
)

type interruptReason int

const (
	reasonTimeLimit interruptReason = iota + 1
	reasonCancelled
	reasonMemoryLimit
)

type preparedProgram struct {
	program *goja.Program
	symbols []string
	cfg     Config
	logger  zerolog.Logger
}

func (p *preparedProgram) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// Invoke runs the compiled program in a new runtime and calls the entry point.
func (p *preparedProgram) Invoke(ctx context.Context, call runtimex.Call, budget execution.Budget) execution.Outcome {
	if err := ctx.Err(); err != nil {
		return execution.Cancelled()
	}
	if !execution.ValidIdentifier(call.EntryPoint) {
		return execution.MissingEntryPoint(call.EntryPoint)
	}
	budget = budget.Merge(execution.DefaultBudget())

	vm := goja.New()
	vm.SetMaxCallStackSize(p.cfg.MaxCallStackSize)

	output := governor.NewLimitedBuffer(budget.OutputLimitBytes)
	if err := installGlobals(vm, output); err != nil {
		return execution.Thrown(fmt.Sprintf("internal error: %v", err))
	}

	deadline := time.Now().Add(budget.TimeLimit)
	timer := time.AfterFunc(budget.TimeLimit, func() { vm.Interrupt(reasonTimeLimit) })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(reasonCancelled) })
	defer stop()
	watch := watchMemory(vm, budget.MemoryLimitBytes, p.cfg.MemoryPoll)
	defer watch.Stop()

	defer func() {
		if output.Len() > 0 {
			p.logger.Debug().
				Str("entry_point", call.EntryPoint).
				Bool("truncated", output.Truncated()).
				Str("console", output.String()).
				Msg("captured console output")
		}
	}()

	if _, err := vm.RunProgram(p.program); err != nil {
		return p.failure(err)
	}

	// Evaluating the bare name resolves let and const bindings too, which are
	// not properties of the global object.
	entry, err := vm.RunString(call.EntryPoint)
	if err != nil {
		if isReferenceError(err) {
			return execution.MissingEntryPoint(call.EntryPoint)
		}
		return p.failure(err)
	}
	fn, ok := goja.AssertFunction(entry)
	if !ok {
		return execution.Thrown(fmt.Sprintf("TypeError: %s is not a function", call.EntryPoint))
	}

	args := make([]goja.Value, len(call.Arguments))
	for i, arg := range call.Arguments {
		args[i] = toJS(vm, arg)
	}

	ret, err := fn(goja.Undefined(), args...)
	if err != nil {
		return p.failure(err)
	}

	value, err := newResultReader(ctx, deadline).read(ret, 0)
	switch {
	case errors.Is(err, errResultTimedOut):
		return execution.TimedOut()
	case errors.Is(err, errResultCancelled):
		return execution.Cancelled()
	case err != nil:
		return execution.Thrown(err.Error())
	}
	return execution.Returned(value)
}

func (p *preparedProgram) failure(err error) execution.Outcome {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch interrupted.Value() {
		case reasonTimeLimit:
			return execution.TimedOut()
		case reasonCancelled:
			return execution.Cancelled()
		case reasonMemoryLimit:
			return execution.Thrown("RangeError: memory limit exceeded")
		}
		return execution.Thrown(interrupted.Error())
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return execution.Thrown("RangeError: Maximum call stack size exceeded")
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return execution.Thrown(exceptionMessage(exception))
	}

	return execution.Thrown(err.Error())
}

// exceptionMessage renders what was thrown without the interpreter's stack
// trace. Thrown Error objects render as "Name: message".
func exceptionMessage(exception *goja.Exception) string {
	value := exception.Value()
	if value == nil {
		return strings.TrimSpace(exception.Error())
	}
	return value.String()
}

func isReferenceError(err error) bool {
	var exception *goja.Exception
	if !errors.As(err, &exception) {
		return false
	}
	obj, ok := exception.Value().(*goja.Object)
	if !ok {
		return false
	}
	name := obj.Get("name")
	return name != nil && name.String() == "ReferenceError"
}

func (p *preparedProgram) Close() error {
	return nil
}
