package stream

// file: internal/stream/kafka.go

import (
	"context"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/kimosabey/dataquarantine/internal/logging"
)

var streamLogger = logging.GetLogger("stream")

// KafkaConsumer is the reference Consumer, backed by kafka-go's Reader
// with auto-commit disabled: CommitOffsets is the only path that
// advances the group's committed offsets.
type KafkaConsumer struct {
	reader *kafka.Reader
	topic  string
}

// KafkaConsumerConfig mirrors the stream.* fields of spec.md §6's
// configuration table.
type KafkaConsumerConfig struct {
	Bootstrap       []string
	Topic           string
	GroupID         string
	AutoOffsetReset string // "earliest" or "latest"
}

// NewKafkaConsumer constructs a KafkaConsumer. CommitInterval is left at
// its zero value so kafka-go never auto-commits; every commit flows
// through CommitOffsets.
func NewKafkaConsumer(cfg KafkaConsumerConfig) *KafkaConsumer {
	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Bootstrap,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    startOffset,
		CommitInterval: 0, // disables kafka-go's background auto-commit.
		MinBytes:       1,
		MaxBytes:       10 << 20,
	})
	return &KafkaConsumer{reader: reader, topic: cfg.Topic}
}

// Poll implements Consumer. It fetches up to maxRecords messages: the
// first fetch blocks on ctx, subsequent fetches use a short grace window
// so the batch returns promptly once the backlog is drained rather than
// blocking for a full maxRecords count that may never arrive.
func (c *KafkaConsumer) Poll(ctx context.Context, maxRecords int) ([]Message, error) {
	messages := make([]Message, 0, maxRecords)
	for i := 0; i < maxRecords; i++ {
		fetchCtx := ctx
		var cancel context.CancelFunc
		if i > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, 50*time.Millisecond)
		}
		m, err := c.reader.FetchMessage(fetchCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if i > 0 && fetchCtx.Err() != nil {
				break // grace window elapsed with nothing further queued.
			}
			if ctx.Err() != nil {
				return messages, ctx.Err()
			}
			return messages, err
		}
		messages = append(messages, Message{
			Value:     m.Value,
			Key:       m.Key,
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Timestamp: m.Time,
		})
	}
	return messages, nil
}

// CommitOffsets implements Consumer by committing the given offsets
// through kafka-go's consumer-group commit path. Per spec.md §4.5, the
// caller passes max(seen_offset)+1.
func (c *KafkaConsumer) CommitOffsets(ctx context.Context, offsets map[TopicPartition]int64) error {
	commits := make([]kafka.Message, 0, len(offsets))
	for tp, offset := range offsets {
		commits = append(commits, kafka.Message{Topic: tp.Topic, Partition: tp.Partition, Offset: offset})
	}
	return c.reader.CommitMessages(ctx, commits...)
}

// Lag implements Consumer. kafka-go's Reader.Stats exposes an aggregate
// lag across this reader's assigned partitions rather than a per-partition
// breakdown, so the map carries one synthetic entry per topic; operators
// wanting true per-partition lag should read it from the consumer group's
// broker-side offset metadata instead.
func (c *KafkaConsumer) Lag(_ context.Context) (map[TopicPartition]int64, error) {
	stats := c.reader.Stats()
	return map[TopicPartition]int64{
		{Topic: c.topic, Partition: -1}: stats.Lag,
	}, nil
}

// Close implements Consumer.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// KafkaProducer is the reference Producer, backed by kafka-go's Writer.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer constructs a KafkaProducer targeting bootstrap. The
// topic is chosen per-message at Publish time since the router writes to
// both the validated and quarantine topics from one producer.
func NewKafkaProducer(bootstrap []string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(bootstrap...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish implements Producer, blocking until the broker acknowledges the
// write.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value})
	if err != nil {
		streamLogger.Error("publish failed", "topic", topic, "error", err)
	}
	return err
}

// Close implements Producer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
