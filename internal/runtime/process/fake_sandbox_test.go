package process

import (
	"context"
	"sync"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
)

// fakeSandbox records jobs and answers them from a script of handlers.
type fakeSandbox struct {
	mu      sync.Mutex
	jobs    []runtimex.Job
	respond func(job runtimex.Job) (*execution.Result, error)
}

func (f *fakeSandbox) Run(ctx context.Context, job runtimex.Job) (*execution.Result, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	respond := f.respond
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return respond(job)
}

func (f *fakeSandbox) Close() error {
	return nil
}

func (f *fakeSandbox) recorded() []runtimex.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runtimex.Job(nil), f.jobs...)
}

func reported(line string) *execution.Result {
	return &execution.Result{Status: execution.StatusOK, Stderr: "noise\n" + envelopeMarker + line + "\n"}
}
