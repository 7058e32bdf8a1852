package process

import (
	"encoding/json"
	"fmt"
	"strings"

	"harness/internal/domain/execution"
)

const envelopeMarker = "@@harness@@"

// envelope is the single line a driver writes to report an invocation.
type envelope struct {
	OK      bool            `json:"ok"`
	Value   json.RawMessage `json:"value"`
	Error   string          `json:"error"`
	Missing bool            `json:"missing"`
}

// findEnvelope returns the last envelope written to stderr.
func findEnvelope(stderr string) (envelope, bool) {
	idx := strings.LastIndex(stderr, envelopeMarker)
	if idx < 0 {
		return envelope{}, false
	}
	line := stderr[idx+len(envelopeMarker):]
	if end := strings.IndexByte(line, '\n'); end >= 0 {
		line = line[:end]
	}

	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

func (e envelope) value() (execution.Value, error) {
	if len(e.Value) == 0 {
		return execution.Null(), nil
	}
	return execution.DecodeValue(e.Value)
}

// interpret turns a finished process into an outcome. The time limit wins over
// anything the process managed to print.
func interpret(result *execution.Result, entryPoint string) execution.Outcome {
	if result.Status == execution.StatusTimeLimit {
		return execution.TimedOut()
	}

	if env, ok := findEnvelope(result.Stderr); ok {
		switch {
		case env.Missing:
			return execution.MissingEntryPoint(entryPoint)
		case !env.OK:
			return execution.Thrown(env.Error)
		}
		value, err := env.value()
		if err != nil {
			return execution.Thrown(fmt.Sprintf("invalid result: %v", err))
		}
		return execution.Returned(value)
	}

	if result.Status == execution.StatusMemoryLimit {
		return execution.Thrown("memory limit exceeded")
	}
	return execution.Thrown(crashMessage(result))
}

// crashMessage describes a process that died without reporting, using the
// last line of its stderr.
func crashMessage(result *execution.Result) string {
	lines := strings.Split(strings.TrimSpace(result.Stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && !strings.Contains(line, envelopeMarker) {
			return line
		}
	}
	return fmt.Sprintf("process exited with code %d", result.ExitCode)
}

// compilerOutput is the text reported for a failed build.
func compilerOutput(result *execution.Result) string {
	if text := strings.TrimSpace(result.Stderr); text != "" {
		return text
	}
	if text := strings.TrimSpace(result.Stdout); text != "" {
		return text
	}
	return fmt.Sprintf("compilation failed with exit code %d", result.ExitCode)
}
