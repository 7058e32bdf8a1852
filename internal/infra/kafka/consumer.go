package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"harness/internal/domain/execution"
	"harness/internal/ports"
)

// Config describes how to connect to a Kafka cluster for consuming requests.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
	// Logger reports skipped messages. The zero value discards them.
	Logger zerolog.Logger
}

var _ ports.RequestProducer = (*Consumer)(nil)

// Consumer wraps a kafka-go reader to implement ports.RequestProducer.
type Consumer struct {
	reader messageReader
	logger zerolog.Logger
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// NewConsumer builds a new Consumer from the provided configuration.
func NewConsumer(cfg Config) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be provided")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "harness-runner"
	}

	readerConfig := kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	}

	if readerConfig.MinBytes == 0 {
		readerConfig.MinBytes = 1
	}
	if readerConfig.MaxBytes == 0 {
		readerConfig.MaxBytes = 10 * 1024 * 1024
	}
	if readerConfig.MaxWait == 0 {
		readerConfig.MaxWait = time.Second
	}

	return newConsumer(kafkago.NewReader(readerConfig), cfg.Logger), nil
}

func newConsumer(reader messageReader, logger zerolog.Logger) *Consumer {
	return &Consumer{reader: reader, logger: logger}
}

// NextRequest blocks until the next request message is available in Kafka or
// the context is cancelled. Messages that cannot be decoded are logged and
// skipped so that one bad producer cannot stall the worker.
func (c *Consumer) NextRequest(ctx context.Context) (execution.ExecutionRequest, error) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return execution.ExecutionRequest{}, err
		}

		req, err := decodeRequestMessage(msg)
		if err == nil {
			return req, nil
		}
		if isDone(err) {
			return execution.ExecutionRequest{}, err
		}

		c.logger.Warn().
			Err(err).
			Str("topic", msg.Topic).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("skipping malformed request message")
	}
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
