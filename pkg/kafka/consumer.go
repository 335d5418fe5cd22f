package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries bounds handler attempts before a message is dead-lettered
// (or dropped when no DLQ is configured) and committed.
const maxHandlerRetries = 3

// Handler processes one event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic in a consumer group and feeds events to a Handler.
// Offsets are committed only after the handler succeeded or the message was
// dead-lettered.
type Consumer struct {
	reader    messageReader
	topic     string
	group     string
	handler   Handler
	dlq       *DLQProducer
	logger    *slog.Logger
	backoff   func(attempt int) time.Duration
	closeOnce sync.Once
}

// NewConsumer creates a consumer. dlq may be nil.
func NewConsumer(cfg ConsumerConfig, handler Handler, dlq *DLQProducer, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg.Topic, cfg.GroupID, handler, dlq, logger)
}

func newConsumer(r messageReader, topic, group string, handler Handler, dlq *DLQProducer, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		group:   group,
		handler: handler,
		dlq:     dlq,
		logger:  logger,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt) * 100 * time.Millisecond },
	}
}

// Start consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", slog.String("topic", c.topic), slog.String("group", c.group))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		consumerMessagesReceived.WithLabelValues(c.topic, c.group).Inc()

		if !c.process(ctx, msg) {
			return c.Close()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message", slog.String("error", err.Error()))
		}
	}
}

// process handles one message. It returns false only when ctx was canceled
// mid-retry, in which case the message must not be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to unmarshal event",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
		)
		c.deadLetter(ctx, msg, err)
		return true
	}

	ctx = extractTraceContext(ctx, &msg)
	start := time.Now()
	defer func() {
		consumerProcessingDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			consumerMessagesProcessed.WithLabelValues(c.topic, c.group).Inc()
			return true
		}
		c.logger.WarnContext(ctx, "handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
		)
		if attempt < maxHandlerRetries {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	consumerMessagesFailed.WithLabelValues(c.topic, c.group).Inc()
	c.logger.ErrorContext(ctx, "handler failed after all retries",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.String("error", lastErr.Error()),
		slog.Int64("offset", msg.Offset),
	)
	c.deadLetter(ctx, msg, lastErr)
	return true
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group); err != nil {
		c.logger.ErrorContext(ctx, "failed to dead-letter message", slog.String("error", err.Error()))
		return
	}
	consumerDLQPublished.WithLabelValues(c.topic, c.group).Inc()
}

// Close closes the reader. It is safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
