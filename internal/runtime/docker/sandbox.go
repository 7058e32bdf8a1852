package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/docker/docker/client"
	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
)

// Option configures the sandbox.
type Option func(*Sandbox)

// WithLogger sets the sandbox logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sandbox) {
		s.logger = logger
	}
}

// Sandbox implements runtime.Sandbox with one short-lived container per job.
type Sandbox struct {
	runtimes map[execution.Language]*languageRuntime
	engine   *containerEngine
	client   dockerClient
	logger   zerolog.Logger
}

var _ runtimex.Sandbox = (*Sandbox)(nil)

// New constructs a Sandbox talking to the Docker daemon from the environment.
func New(cfg Config, opts ...Option) (*Sandbox, error) {
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("docker runtime: at least one language must be configured")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker runtime: create client: %w", err)
	}

	sandbox, err := newSandboxWithClient(cli, cfg, opts...)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}

	return sandbox, nil
}

func newSandboxWithClient(cli dockerClient, cfg Config, opts ...Option) (*Sandbox, error) {
	s := &Sandbox{
		runtimes: make(map[execution.Language]*languageRuntime, len(cfg.Languages)),
		client:   cli,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = newContainerEngine(cli, cfg, s.logger)

	for lang, langCfg := range cfg.Languages {
		runtime, err := newLanguageRuntime(lang, langCfg, s.engine)
		if err != nil {
			return nil, err
		}
		s.runtimes[lang] = runtime
	}

	return s, nil
}

// Run executes the job in a fresh container of the job language's image.
func (s *Sandbox) Run(ctx context.Context, job runtimex.Job) (*execution.Result, error) {
	runtime, ok := s.runtimes[job.Language]
	if !ok {
		return nil, fmt.Errorf("docker runtime: no image configured for language %q", job.Language)
	}

	if err := runtime.ensureImage(ctx); err != nil {
		return nil, err
	}

	return s.engine.runJob(ctx, runtime, job)
}

// Languages lists the languages with a configured image.
func (s *Sandbox) Languages() []execution.Language {
	langs := make([]execution.Language, 0, len(s.runtimes))
	for lang := range s.runtimes {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Close releases the Docker client.
func (s *Sandbox) Close() error {
	var errs []error
	if err := s.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("docker client: %w", err))
	}
	return errors.Join(errs...)
}
