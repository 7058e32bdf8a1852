// Package local runs sandbox jobs as plain child processes on the host, for
// machines without a Docker daemon. Each job gets a throwaway working
// directory and its whole process group is killed when the time limit passes.
//
// The local sandbox does not isolate the filesystem or network and it cannot
// enforce memory limits itself; drivers that can cap their own address space
// receive the limit on their command line.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
	"harness/internal/runtime/governor"
)

const defaultWaitDelay = time.Second

// Config describes the local sandbox.
type Config struct {
	// Root is the directory under which per-job directories are created.
	// Empty means os.TempDir().
	Root          string
	DefaultLimits execution.Budget
}

// Option configures the sandbox.
type Option func(*Sandbox)

// WithLogger sets the sandbox logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sandbox) {
		s.logger = logger
	}
}

// Sandbox implements runtime.Sandbox with os/exec.
type Sandbox struct {
	root          string
	defaultLimits execution.Budget
	logger        zerolog.Logger
}

var _ runtimex.Sandbox = (*Sandbox)(nil)

// New constructs a local sandbox.
func New(cfg Config, opts ...Option) (*Sandbox, error) {
	root := cfg.Root
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local runtime: create root %s: %w", root, err)
	}

	s := &Sandbox{
		root:          root,
		defaultLimits: cfg.DefaultLimits.Merge(execution.DefaultBudget()),
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes job.Command inside a fresh directory holding job.Files.
func (s *Sandbox) Run(ctx context.Context, job runtimex.Job) (*execution.Result, error) {
	if len(job.Command) == 0 {
		return nil, fmt.Errorf("local runtime: empty command")
	}
	limits := job.Limits.Merge(s.defaultLimits)

	dir, err := os.MkdirTemp(s.root, "harness-")
	if err != nil {
		return nil, fmt.Errorf("local runtime: create workdir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("failed to remove job directory")
		}
	}()

	if err := writeFiles(dir, job.Files); err != nil {
		return nil, fmt.Errorf("copy files: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, limits.TimeLimit)
	defer cancel()

	stdout := governor.NewLimitedBuffer(limits.OutputLimitBytes)
	stderr := governor.NewTailBuffer(limits.OutputLimitBytes)

	cmd := exec.CommandContext(runCtx, job.Command[0], job.Command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if job.Stdin != "" {
		cmd.Stdin = strings.NewReader(job.Stdin)
	}
	cmd.WaitDelay = defaultWaitDelay
	killProcessGroup(cmd)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("local runtime: %w", ctx.Err())
	}

	result := &execution.Result{
		Status:    execution.StatusOK,
		Stdout:    runtimex.ScrubPath(stdout.String(), dir),
		Stderr:    runtimex.ScrubPath(stderr.String(), dir),
		Duration:  duration,
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Status = execution.StatusTimeLimit
		result.ExitCode = -1
		return result, nil
	case errors.As(runErr, &exitErr):
		result.ExitCode = int64(exitErr.ExitCode())
	case runErr != nil:
		return nil, fmt.Errorf("local runtime: run %s: %w", job.Command[0], runErr)
	}

	if job.Collect != "" && result.ExitCode == 0 {
		artifact, err := os.ReadFile(filepath.Join(dir, job.Collect))
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", job.Collect, err)
		}
		result.Artifact = artifact
	}

	s.logger.Debug().
		Strs("command", job.Command).
		Int64("exit_code", result.ExitCode).
		Dur("duration", duration).
		Msg("local job finished")

	return result, nil
}

// Close is a no-op; job directories are removed as each job finishes.
func (s *Sandbox) Close() error {
	return nil
}

func writeFiles(dir string, files []runtimex.File) error {
	for _, file := range files {
		if file.Name == "" || filepath.IsAbs(file.Name) || strings.Contains(file.Name, "..") {
			return fmt.Errorf("invalid file name %q", file.Name)
		}
		mode := os.FileMode(file.Mode)
		if mode == 0 {
			mode = 0o644
		}
		path := filepath.Join(dir, file.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, file.Data, mode); err != nil {
			return err
		}
	}
	return nil
}
