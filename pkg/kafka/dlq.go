package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQProducer forwards messages that exhausted their retries to
// DLQTopic(original topic), annotated with where they came from.
type DLQProducer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewDLQProducer creates a synchronous dead-letter writer.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		BatchTimeout:           100 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &DLQProducer{writer: w, logger: logger}
}

// Publish sends original to its dead-letter topic.
func (d *DLQProducer) Publish(ctx context.Context, original kafka.Message, lastErr error, consumerGroup string) error {
	topic := DLQTopic(original.Topic)

	headers := make([]kafka.Header, 0, len(original.Headers)+5)
	headers = append(headers, original.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(original.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(original.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(original.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(consumerGroup)},
	)
	if lastErr != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(lastErr.Error())})
	}

	err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     original.Key,
		Value:   original.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("publish to DLQ %s: %w", topic, err)
	}

	d.logger.WarnContext(ctx, "message sent to DLQ",
		slog.String("dlq_topic", topic),
		slog.Int("partition", original.Partition),
		slog.Int64("offset", original.Offset),
		slog.String("consumer_group", consumerGroup),
	)
	return nil
}

// Close closes the writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
