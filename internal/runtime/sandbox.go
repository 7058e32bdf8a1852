package runtime

import (
	"context"
	"strings"

	"harness/internal/domain/execution"
)

// File is placed in a job's working directory before its command starts.
type File struct {
	Name string
	Mode int64
	Data []byte
}

// Job is one sandboxed process run.
type Job struct {
	Language execution.Language
	Command  []string
	Files    []File
	Stdin    string
	// Limits supplies the time, memory and output ceilings. Zero fields fall
	// back to the sandbox defaults.
	Limits execution.Budget
	// Collect names a file in the working directory to return as the result's
	// artifact when the command exits successfully.
	Collect string
}

// Sandbox runs untrusted processes. Implementations kill the process when the
// time limit passes and report it through Result.Status rather than an error.
// The returned error is reserved for host faults.
type Sandbox interface {
	Run(ctx context.Context, job Job) (*execution.Result, error)
	Close() error
}

// ScrubPath removes a sandbox working directory from process output so that
// host layout never reaches callers.
func ScrubPath(text, dir string) string {
	dir = strings.TrimRight(dir, "/")
	if dir == "" {
		return text
	}
	text = strings.ReplaceAll(text, dir+"/", "")
	return strings.ReplaceAll(text, dir, ".")
}
