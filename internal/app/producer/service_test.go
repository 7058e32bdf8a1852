package producer

import (
	"context"
	"errors"
	"io"
	"testing"

	"harness/internal/domain/execution"
)

func TestNewServiceYieldsRequestsInOrder(t *testing.T) {
	t.Parallel()

	service := NewService(
		execution.ExecutionRequest{ID: "first", Language: execution.LanguageJavaScript},
		execution.ExecutionRequest{ID: "second", Language: execution.LanguagePython},
	)

	first, err := service.NextRequest(context.Background())
	if err != nil {
		t.Fatalf("NextRequest returned error: %v", err)
	}
	if first.ID != "first" {
		t.Fatalf("expected first request ID 'first', got %q", first.ID)
	}

	second, err := service.NextRequest(context.Background())
	if err != nil {
		t.Fatalf("NextRequest returned error: %v", err)
	}
	if second.ID != "second" {
		t.Fatalf("expected second request ID 'second', got %q", second.ID)
	}
}

func TestNextRequestReturnsEOFWhenExhausted(t *testing.T) {
	t.Parallel()

	service := NewService(execution.ExecutionRequest{ID: "only"})

	_, _ = service.NextRequest(context.Background())

	_, err := service.NextRequest(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestNextRequestContextCancellation(t *testing.T) {
	t.Parallel()

	service := NewService(execution.ExecutionRequest{ID: "only"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.NextRequest(ctx)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAddRequestAssignsID(t *testing.T) {
	t.Parallel()

	service := NewService()
	id := service.AddRequest(execution.ExecutionRequest{Language: execution.LanguageRust})
	if id == "" {
		t.Fatalf("expected generated ID")
	}

	got, err := service.NextRequest(context.Background())
	if err != nil {
		t.Fatalf("NextRequest returned error: %v", err)
	}
	if got.ID != id {
		t.Fatalf("expected queued request to carry ID %q, got %q", id, got.ID)
	}
	if service.Len() != 1 {
		t.Fatalf("expected one queued request, got %d", service.Len())
	}
}
