package kafka

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/config"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

// ContentType labels the message value: one NVSPL hour file as CSV text.
const ContentType = "text/csv"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes hour buckets to a Kafka topic.
// It implements pipeline.BucketLoader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic. Messages are
// partitioned by bucket name so rewrites of one hour stay ordered.
func NewWriter(cfg config.KafkaConfig, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBucket publishes b as a single message.
func (w *Writer) LoadBucket(ctx context.Context, b domain.HourBucket) error {
	msg, err := serializeToMessage(b)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Key, err)
	}
	w.logger.Debug("bucket published", "bucket", string(msg.Key), "rows", len(b.Rows))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage renders a bucket into a Kafka message keyed by its
// output file stem.
func serializeToMessage(b domain.HourBucket) (kafkago.Message, error) {
	var buf bytes.Buffer
	if err := domain.EncodeBucket(&buf, b); err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize bucket: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(domain.BucketFileStem(b.Key)),
		Value: buf.Bytes(),
		Headers: []kafkago.Header{
			{Key: "site", Value: []byte(b.Key.Site)},
			{Key: "hour", Value: []byte(domain.FormatTimestamp(b.Key.Hour))},
			{Key: "rows", Value: []byte(strconv.Itoa(len(b.Rows)))},
			{Key: "content_type", Value: []byte(ContentType)},
		},
	}, nil
}
