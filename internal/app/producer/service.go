package producer

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"harness/internal/domain/execution"
	"harness/internal/ports"
)

// Service implements ports.RequestProducer over an in-memory queue of
// requests, for example suites loaded from files by the CLI.
type Service struct {
	mu       sync.Mutex
	requests []execution.ExecutionRequest
	index    int
}

var _ ports.RequestProducer = (*Service)(nil)

// NewService builds a producer that yields the given requests in order.
func NewService(requests ...execution.ExecutionRequest) *Service {
	s := &Service{}
	for _, req := range requests {
		s.AddRequest(req)
	}
	return s
}

// NextRequest returns the next queued request, or io.EOF once the queue is drained.
func (s *Service) NextRequest(ctx context.Context) (execution.ExecutionRequest, error) {
	select {
	case <-ctx.Done():
		return execution.ExecutionRequest{}, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.requests) {
		return execution.ExecutionRequest{}, io.EOF
	}

	req := s.requests[s.index]
	s.index++

	return req, nil
}

// AddRequest appends a request to the queue, assigning an id when it has none.
func (s *Service) AddRequest(req execution.ExecutionRequest) string {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	return req.ID
}

// Len reports how many requests have been queued in total.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
