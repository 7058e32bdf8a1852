package jsvm

import (
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
)

// installGlobals provides the small host surface solutions commonly touch:
// console logging and CommonJS-style module/exports objects.
func installGlobals(vm *goja.Runtime, out io.Writer) error {
	console := vm.NewObject()
	log := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(name, log); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	exports := vm.NewObject()
	module := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return err
	}
	if err := vm.Set("module", module); err != nil {
		return err
	}
	return vm.Set("exports", exports)
}
