package ports

import (
	"context"

	"harness/internal/domain/execution"
)

// RunReportPublisher publishes request reports to an external system.
type RunReportPublisher interface {
	PublishRunReport(ctx context.Context, report execution.RunReport) error
	Close() error
}
