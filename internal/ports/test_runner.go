package ports

import (
	"context"

	"harness/internal/domain/execution"
)

// TestRunner evaluates a submission against its test cases. Transports depend
// on this rather than on the executor service directly.
type TestRunner interface {
	Run(ctx context.Context, req execution.ExecutionRequest) execution.Summary
	Languages() []execution.Language
}
