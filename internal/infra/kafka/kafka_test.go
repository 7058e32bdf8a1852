package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"harness/internal/domain/execution"
)

func TestNewConsumerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewConsumer(Config{}); err == nil {
		t.Fatalf("expected error when brokers missing")
	}
	if _, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatalf("expected error when topic missing")
	}
}

func TestNewConsumerAppliesDefaults(t *testing.T) {
	t.Parallel()

	consumer, err := NewConsumer(Config{
		Brokers: []string{"localhost:9092"},
		Topic:   "requests",
	})
	if err != nil {
		t.Fatalf("NewConsumer returned error: %v", err)
	}
	if err := consumer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestConsumerNextRequestParsesEnvelope(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"language": "JS",
		"code": "function add(a, b) { return a + b; }",
		"testCases": [
			{"description": "adds", "entryPoint": "add", "arguments": [2, 3], "expected": 5},
			{"description": "close", "entryPoint": "add", "arguments": [0.1, 0.2], "predicate": {"kind": "approx", "value": 0.3}}
		]
	}`)

	reader := &fakeReader{messages: []kafkago.Message{{Key: []byte("request-1"), Value: payload}}}
	consumer := newConsumer(reader, zerolog.Nop())

	req, err := consumer.NextRequest(context.Background())
	if err != nil {
		t.Fatalf("NextRequest returned error: %v", err)
	}

	if req.ID != "request-1" {
		t.Fatalf("expected request ID from key, got %q", req.ID)
	}
	if req.Language != execution.LanguageJavaScript {
		t.Fatalf("unexpected language: %q", req.Language)
	}
	if len(req.TestCases) != 2 {
		t.Fatalf("expected two test cases, got %d", len(req.TestCases))
	}
	if req.TestCases[0].EntryPoint != "add" || len(req.TestCases[0].Arguments) != 2 {
		t.Fatalf("unexpected first case %+v", req.TestCases[0])
	}
	if req.TestCases[1].Expected.Predicate == nil || req.TestCases[1].Expected.Predicate.Kind != execution.PredicateApprox {
		t.Fatalf("expected approx predicate on second case")
	}
}

func TestConsumerKeepsUnknownLanguageVerbatim(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id": "r1", "language": "cobol", "code": "DISPLAY 'HI'."}`)
	consumer := newConsumer(&fakeReader{messages: []kafkago.Message{{Value: payload}}}, zerolog.Nop())

	req, err := consumer.NextRequest(context.Background())
	if err != nil {
		t.Fatalf("NextRequest returned error: %v", err)
	}
	if req.ID != "r1" || req.Language != execution.Language("cobol") {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestDecodeRequestMessageAcceptsEmptyCode(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id": "r2", "language": "python", "testCases": [{"entryPoint": "add", "arguments": [], "expected": 0}]}`)
	req, err := decodeRequestMessage(kafkago.Message{Value: payload})
	if err != nil {
		t.Fatalf("decodeRequestMessage returned error: %v", err)
	}
	if req.ID != "r2" || req.Code != "" || len(req.TestCases) != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestDecodeRequestMessageValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
		match   string
	}{
		{name: "missing language", payload: `{"code": "x = 1"}`, match: "missing language"},
		{name: "unknown type", payload: `{"type": "weird", "language": "python", "code": "x = 1"}`, match: "unknown message type"},
		{name: "bad json", payload: `{`, match: "decode message"},
		{name: "bad test case", payload: `{"language": "python", "code": "x", "testCases": [{"arguments": [NaN]}]}`, match: "decode message"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := decodeRequestMessage(kafkago.Message{Value: []byte(tc.payload)})
			if err == nil || !strings.Contains(err.Error(), tc.match) {
				t.Fatalf("expected error containing %q, got %v", tc.match, err)
			}
		})
	}
}

func TestConsumerSkipsMalformedMessages(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{messages: []kafkago.Message{
		{Value: []byte(`{"type": "weird"}`)},
		{Value: []byte(`not json`)},
		{Key: []byte("good"), Value: []byte(`{"language": "python", "code": "x = 1"}`)},
	}}
	consumer := newConsumer(reader, zerolog.Nop())

	req, err := consumer.NextRequest(context.Background())
	if err != nil {
		t.Fatalf("NextRequest returned error: %v", err)
	}
	if req.ID != "good" {
		t.Fatalf("expected the first well-formed request, got %q", req.ID)
	}
}

func TestConsumerNextRequestDoneMessage(t *testing.T) {
	t.Parallel()

	payload, _ := json.Marshal(requestEnvelope{Type: messageTypeDone})
	reader := &fakeReader{messages: []kafkago.Message{{Value: payload}}}
	consumer := newConsumer(reader, zerolog.Nop())

	_, err := consumer.NextRequest(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF for done message, got %v", err)
	}
}

func TestConsumerCloseProxiesUnderlyingReader(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{}
	consumer := newConsumer(reader, zerolog.Nop())

	if err := consumer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !reader.closed {
		t.Fatalf("expected reader to be closed")
	}
}

func TestPublisherValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewPublisher(PublisherConfig{}); err == nil {
		t.Fatalf("expected error when brokers missing")
	}
	if _, err := NewPublisher(PublisherConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatalf("expected error when topic missing")
	}
}

func TestNewPublisherValidConfig(t *testing.T) {
	t.Parallel()

	publisher, err := NewPublisher(PublisherConfig{Brokers: []string{"localhost:9092"}, Topic: "reports"})
	if err != nil {
		t.Fatalf("NewPublisher returned error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestPublisherPublishesRunReport(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	publisher := newPublisher(writer)

	report := execution.RunReport{
		Request: execution.ExecutionRequest{ID: "request-42", Language: execution.LanguagePython},
		Summary: execution.Summarize([]execution.TestResult{
			{Description: "adds", Passed: true},
			{Description: "subtracts", Error: "expected 1, got -1"},
		}),
		Err: errors.New("boom"),
	}

	if err := publisher.PublishRunReport(context.Background(), report); err != nil {
		t.Fatalf("PublishRunReport returned error: %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if string(msg.Key) != "request-42" {
		t.Fatalf("expected message keyed by request id, got %q", msg.Key)
	}

	var envelope struct {
		ID        string          `json:"id"`
		Language  string          `json:"language"`
		AllPassed bool            `json:"allPassed"`
		Results   json.RawMessage `json:"results"`
		Error     string          `json:"error"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		t.Fatalf("failed to unmarshal report envelope: %v", err)
	}

	if envelope.ID != "request-42" || envelope.Language != "python" {
		t.Fatalf("unexpected envelope header: %+v", envelope)
	}
	if envelope.AllPassed {
		t.Fatalf("expected allPassed false")
	}
	if envelope.Error != "boom" {
		t.Fatalf("expected propagated error, got %q", envelope.Error)
	}
	want := `[{"description":"adds","passed":true,"error":null},{"description":"subtracts","passed":false,"error":"expected 1, got -1"}]`
	if string(envelope.Results) != want {
		t.Fatalf("unexpected results payload %s", envelope.Results)
	}

	if err := publisher.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !writer.closed {
		t.Fatalf("expected writer to be closed")
	}
}

func TestMakeReportEnvelopeEmptyResults(t *testing.T) {
	t.Parallel()

	payload, err := encodeRunReport(execution.RunReport{Request: execution.ExecutionRequest{ID: "empty"}})
	if err != nil {
		t.Fatalf("encodeRunReport returned error: %v", err)
	}
	if !strings.Contains(string(payload), `"results":[]`) {
		t.Fatalf("expected empty results array, got %s", payload)
	}
	if strings.Contains(string(payload), `"error"`) {
		t.Fatalf("expected error to be omitted, got %s", payload)
	}
}

func TestPublisherCloseWithNilWriter(t *testing.T) {
	t.Parallel()

	publisher := &Publisher{}
	if err := publisher.Close(); err != nil {
		t.Fatalf("Close should succeed when writer nil, got %v", err)
	}
}

func TestPublisherPublishErrors(t *testing.T) {
	t.Parallel()

	t.Run("writer nil", func(t *testing.T) {
		publisher := &Publisher{}
		err := publisher.PublishRunReport(context.Background(), execution.RunReport{})
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Fatalf("expected not initialized error, got %v", err)
		}
	})

	t.Run("writer failure", func(t *testing.T) {
		publisher := newPublisher(&fakeWriter{err: errors.New("boom")})
		err := publisher.PublishRunReport(context.Background(), execution.RunReport{Request: execution.ExecutionRequest{ID: "123"}})
		if err == nil || !strings.Contains(err.Error(), "write message") {
			t.Fatalf("expected write failure, got %v", err)
		}
	})
}

type fakeReader struct {
	messages []kafkago.Message
	err      error
	index    int
	closed   bool
}

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	if r.index < len(r.messages) {
		msg := r.messages[r.index]
		r.index++
		return msg, nil
	}
	if r.err != nil {
		return kafkago.Message{}, r.err
	}
	return kafkago.Message{}, io.EOF
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisherBatchesReports(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	publisher := newPublisher(writer)

	reports := []execution.RunReport{
		{Request: execution.ExecutionRequest{ID: "a"}, Summary: execution.Summarize([]execution.TestResult{{Passed: true}})},
		{Request: execution.ExecutionRequest{ID: "b"}},
	}
	if err := publisher.PublishRunReports(context.Background(), reports...); err != nil {
		t.Fatalf("PublishRunReports returned error: %v", err)
	}
	if len(writer.messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(writer.messages))
	}

	headers := map[string]string{}
	for _, h := range writer.messages[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["all-passed"] != "true" || headers["content-type"] != "application/json" {
		t.Fatalf("unexpected headers %v", headers)
	}

	if err := publisher.PublishRunReports(context.Background()); err != nil {
		t.Fatalf("empty batch should be a no-op, got %v", err)
	}
	if len(writer.messages) != 2 {
		t.Fatalf("empty batch wrote messages")
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	cases := map[string]kafkago.Compression{
		"":       0,
		"none":   0,
		"GZIP":   kafkago.Gzip,
		"snappy": kafkago.Snappy,
		"lz4":    kafkago.Lz4,
		"zstd":   kafkago.Zstd,
	}
	for input, want := range cases {
		got, err := parseCompression(input)
		if err != nil || got != want {
			t.Fatalf("parseCompression(%q) = %v, %v; want %v", input, got, err, want)
		}
	}

	if _, err := parseCompression("brotli"); err == nil {
		t.Fatal("expected error for unknown codec")
	}
	if _, err := NewPublisher(PublisherConfig{Brokers: []string{"b:9092"}, Topic: "t", Compression: "brotli"}); err == nil {
		t.Fatal("expected NewPublisher to reject unknown codec")
	}
}
