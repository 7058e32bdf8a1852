package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"harness/internal/domain/execution"
)

const (
	messageTypeRequest = "request"
	messageTypeDone    = "done"
)

type requestEnvelope struct {
	Type      string               `json:"type"`
	ID        string               `json:"id"`
	Language  string               `json:"language"`
	Code      string               `json:"code"`
	TestCases []execution.TestCase `json:"testCases"`
}

type reportEnvelope struct {
	ID        string                 `json:"id"`
	Language  execution.Language     `json:"language"`
	AllPassed bool                   `json:"allPassed"`
	Results   []execution.TestResult `json:"results"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func decodeRequestMessage(msg kafkago.Message) (execution.ExecutionRequest, error) {
	var envelope requestEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return execution.ExecutionRequest{}, fmt.Errorf("decode message: %w", err)
	}

	msgType := envelope.Type
	if msgType == "" {
		msgType = messageTypeRequest
	}

	switch msgType {
	case messageTypeRequest:
		return envelope.toRequest(msg)
	case messageTypeDone:
		return execution.ExecutionRequest{}, io.EOF
	default:
		return execution.ExecutionRequest{}, fmt.Errorf("unknown message type %q", msgType)
	}
}

func (e requestEnvelope) toRequest(msg kafkago.Message) (execution.ExecutionRequest, error) {
	if e.Language == "" {
		return execution.ExecutionRequest{}, fmt.Errorf("request message missing language")
	}

	requestID := e.ID
	if requestID == "" {
		requestID = string(msg.Key)
	}
	if requestID == "" {
		requestID = fmt.Sprintf("%s:%d", msg.Topic, msg.Offset)
	}

	return execution.ExecutionRequest{
		ID:        requestID,
		Language:  resolveLanguage(e.Language),
		Code:      e.Code,
		TestCases: e.TestCases,
	}, nil
}

// resolveLanguage normalises known aliases. Unknown names are kept verbatim so
// that the results report exactly what the producer sent.
func resolveLanguage(raw string) execution.Language {
	if lang, err := execution.ParseLanguage(raw); err == nil {
		return lang
	}
	return execution.Language(strings.TrimSpace(raw))
}

func isDone(err error) bool {
	return errors.Is(err, io.EOF)
}

func encodeRunReport(report execution.RunReport) ([]byte, error) {
	payload, err := json.Marshal(makeReportEnvelope(report))
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return payload, nil
}

func makeReportEnvelope(report execution.RunReport) reportEnvelope {
	errMsg := ""
	if report.Err != nil {
		errMsg = report.Err.Error()
	}

	results := report.Summary.Results
	if results == nil {
		results = []execution.TestResult{}
	}

	return reportEnvelope{
		ID:        report.Request.ID,
		Language:  report.Request.Language,
		AllPassed: report.Summary.AllPassed,
		Results:   results,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	}
}
