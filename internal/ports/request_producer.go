package ports

import (
	"context"

	"harness/internal/domain/execution"
)

// RequestProducer provides execution requests to a consuming service. It
// returns io.EOF once no further requests will arrive.
type RequestProducer interface {
	NextRequest(ctx context.Context) (execution.ExecutionRequest, error)
}
