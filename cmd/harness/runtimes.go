package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"harness/internal/domain/execution"
	runtimex "harness/internal/runtime"
	"harness/internal/runtime/docker"
	"harness/internal/runtime/jsvm"
	"harness/internal/runtime/local"
	"harness/internal/runtime/process"
)

var processLanguages = []execution.Language{
	execution.LanguagePython,
	execution.LanguageRust,
	execution.LanguageKotlin,
	execution.LanguageSwift,
}

// runtimeSet owns the registry and the sandbox its process modules share.
type runtimeSet struct {
	*runtimex.Registry
	sandbox runtimex.Sandbox
}

func (r *runtimeSet) Close() error {
	err := r.Registry.Close()
	if r.sandbox != nil {
		err = errors.Join(err, r.sandbox.Close())
	}
	return err
}

func buildRuntimes(cfg appConfig, logger zerolog.Logger) (*runtimeSet, error) {
	modules := []runtimex.Module{
		jsvm.New(jsvm.Config{}, logger),
	}

	sandbox, err := newSandbox(cfg, logger)
	if err != nil {
		return nil, err
	}

	if sandbox != nil {
		for _, lang := range processLanguages {
			mod, err := process.New(lang, sandbox, process.WithLogger(logger))
			if err != nil {
				_ = sandbox.Close()
				return nil, err
			}
			modules = append(modules, mod)
		}
	}

	reg, err := runtimex.NewRegistry(modules...)
	if err != nil {
		if sandbox != nil {
			_ = sandbox.Close()
		}
		return nil, err
	}

	logger.Debug().
		Str("sandbox", cfg.Sandbox).
		Interface("languages", reg.Languages()).
		Msg("runtimes ready")

	return &runtimeSet{Registry: reg, sandbox: sandbox}, nil
}

// newSandbox returns nil when process languages are disabled.
func newSandbox(cfg appConfig, logger zerolog.Logger) (runtimex.Sandbox, error) {
	switch cfg.Sandbox {
	case "docker":
		sb, err := docker.New(dockerConfigFromEnv(cfg.Limits), docker.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("initialize docker sandbox: %w", err)
		}
		return sb, nil
	case "local":
		sb, err := local.New(local.Config{
			Root:          cfg.LocalRoot,
			DefaultLimits: cfg.Limits,
		}, local.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("initialize local sandbox: %w", err)
		}
		return sb, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown sandbox %q: expected docker, local or none", cfg.Sandbox)
	}
}
