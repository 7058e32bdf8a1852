package docker

import "harness/internal/domain/execution"

const (
	defaultWorkdir   = "/workspace"
	defaultPidsLimit = 128
	defaultNanoCPUs  = 1_000_000_000
)

// Config describes how to create the Docker sandbox.
type Config struct {
	Languages     map[execution.Language]LanguageConfig
	DefaultLimits execution.Budget
	// PidsLimit caps the processes a container may start. Zero uses a default.
	PidsLimit int64
	// NanoCPUs caps CPU time per container. Zero means one CPU.
	NanoCPUs int64
}

// LanguageConfig specifies container settings for a single language.
type LanguageConfig struct {
	Image   string
	Workdir string
}
