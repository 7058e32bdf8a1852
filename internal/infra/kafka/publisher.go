package kafka

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"harness/internal/domain/execution"
	"harness/internal/ports"
)

var _ ports.RunReportPublisher = (*Publisher)(nil)

// PublisherConfig configures the Kafka report publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
	// Compression is one of gzip, snappy, lz4 or zstd. Empty disables it.
	Compression  string
	WriteTimeout time.Duration
}

// Publisher writes run reports to a results topic, one message per request.
type Publisher struct {
	writer messageWriter
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewPublisher validates cfg and builds a Publisher backed by a kafka-go writer.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be provided")
	}

	codec, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		Compression:            codec,
		WriteTimeout:           cfg.WriteTimeout,
	}

	return newPublisher(writer), nil
}

func newPublisher(writer messageWriter) *Publisher {
	return &Publisher{writer: writer}
}

func parseCompression(name string) (kafkago.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafkago.Gzip, nil
	case "snappy":
		return kafkago.Snappy, nil
	case "lz4":
		return kafkago.Lz4, nil
	case "zstd":
		return kafkago.Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// PublishRunReport writes one report. Messages are keyed by request id so
// reports for the same request land on the same partition.
func (p *Publisher) PublishRunReport(ctx context.Context, report execution.RunReport) error {
	return p.PublishRunReports(ctx, report)
}

// PublishRunReports writes several reports in a single batch.
func (p *Publisher) PublishRunReports(ctx context.Context, reports ...execution.RunReport) error {
	if p.writer == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if len(reports) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, 0, len(reports))
	for _, report := range reports {
		msg, err := reportMessage(report)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func reportMessage(report execution.RunReport) (kafkago.Message, error) {
	payload, err := encodeRunReport(report)
	if err != nil {
		return kafkago.Message{}, err
	}

	return kafkago.Message{
		Key:   []byte(report.Request.ID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "language", Value: []byte(report.Request.Language)},
			{Key: "all-passed", Value: []byte(strconv.FormatBool(report.Summary.AllPassed))},
		},
		Time: time.Now(),
	}, nil
}

// Close flushes pending messages and releases the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
