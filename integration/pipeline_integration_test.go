//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"harness/internal/app/executor"
	"harness/internal/domain/execution"
	kafkainfra "harness/internal/infra/kafka"
	runtimex "harness/internal/runtime"
	"harness/internal/runtime/docker"
	"harness/internal/runtime/jsvm"
	"harness/internal/runtime/process"
	"harness/internal/testhelpers"
)

func TestPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	const (
		requestsTopic = "integration-requests"
		resultsTopic  = "integration-results"
	)

	broker := testhelpers.StartKafka(ctx, t, requestsTopic, resultsTopic)

	sandbox, err := docker.New(docker.Config{
		Languages: map[execution.Language]docker.LanguageConfig{
			execution.LanguagePython: {
				Image:   "python:3.12-alpine",
				Workdir: "/workspace",
			},
		},
		DefaultLimits: execution.Budget{
			TimeLimit: 15 * time.Second,
		},
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer sandbox.Close()

	python, err := process.New(execution.LanguagePython, sandbox, process.WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("process.New: %v", err)
	}
	js := jsvm.New(jsvm.Config{}, zerolog.Nop())
	reg, err := runtimex.NewRegistry(js, python)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	service := executor.NewService(reg)
	defer service.Close()

	consumer, err := kafkainfra.NewConsumer(kafkainfra.Config{
		Brokers: []string{broker},
		Topic:   requestsTopic,
		GroupID: "pipeline-integration-consumer",
	})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	defer consumer.Close()

	publisher, err := kafkainfra.NewPublisher(kafkainfra.PublisherConfig{
		Brokers: []string{broker},
		Topic:   resultsTopic,
	})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer publisher.Close()

	execCtx, execCancel := context.WithCancel(ctx)
	defer execCancel()

	errCh := make(chan error, 1)
	sendErr := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	go func() {
		defer execCancel()
		err := service.ExecuteFromProducer(execCtx, consumer, 1, 1, func(report execution.RunReport) {
			if pubErr := publisher.PublishRunReport(execCtx, report); pubErr != nil {
				sendErr(fmt.Errorf("publish run report: %w", pubErr))
				execCancel()
			}
		})
		sendErr(err)
	}()

	requestID := "pipeline-request"
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(broker),
		Topic:                  requestsTopic,
		AllowAutoTopicCreation: false,
		Balancer:               &kafkago.LeastBytes{},
	}
	defer writer.Close()

	requestPayload, err := json.Marshal(map[string]any{
		"type":     "request",
		"id":       requestID,
		"language": "python",
		"code":     "def add(a, b):\n    return a + b\n",
		"testCases": []map[string]any{
			{"description": "small", "entryPoint": "add", "arguments": []int{1, 1}, "expected": 2},
			{"description": "large", "entryPoint": "add", "arguments": []int{20, 22}, "expected": 42},
		},
	})
	if err != nil {
		t.Fatalf("marshal request payload: %v", err)
	}

	if err := writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(requestID),
		Value: requestPayload,
	}); err != nil {
		t.Fatalf("write request message: %v", err)
	}

	resultsReader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: []string{broker},
		Topic:   resultsTopic,
		GroupID: "pipeline-integration-results",
	})
	defer resultsReader.Close()

	msgCtx, msgCancel := context.WithTimeout(ctx, time.Minute)
	defer msgCancel()

	msg, err := resultsReader.ReadMessage(msgCtx)
	if err != nil {
		t.Fatalf("read result message: %v", err)
	}

	var envelope struct {
		ID        string                 `json:"id"`
		Language  string                 `json:"language"`
		AllPassed bool                   `json:"allPassed"`
		Results   []execution.TestResult `json:"results"`
		Error     string                 `json:"error"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		t.Fatalf("decode result message: %v", err)
	}

	if envelope.ID != requestID {
		t.Fatalf("expected result for %q, got %q", requestID, envelope.ID)
	}
	if envelope.Error != "" {
		t.Fatalf("unexpected report error: %s", envelope.Error)
	}
	if !envelope.AllPassed {
		t.Fatalf("expected all cases to pass, got %+v", envelope.Results)
	}
	if len(envelope.Results) != 2 {
		t.Fatalf("expected 2 test results, got %d", len(envelope.Results))
	}
	for i, result := range envelope.Results {
		if !result.Passed {
			t.Fatalf("expected case %d to pass, got error %q", i+1, result.Error)
		}
	}

	if err := <-errCh; err != nil {
		t.Fatalf("pipeline execution error: %v", err)
	}
}
