package stream

// file: internal/stream/stream.go

import "context"

// Consumer is the input-stream side of spec.md §6: manual offset commit,
// a bounded batch size, and a configurable reset policy. Auto-commit must
// never be enabled by an implementation of this interface.
type Consumer interface {
	// Poll returns up to maxRecords messages, blocking until at least one
	// is available or ctx is canceled. An empty, nil-error result is a
	// valid response to a poll that timed out with nothing new.
	Poll(ctx context.Context, maxRecords int) ([]Message, error)

	// CommitOffsets advances the committed offset for each TopicPartition
	// to the given value. Per spec.md §4.5 step 5, callers must pass
	// max(seen_offset)+1 for each partition, only after every message up
	// to that offset has been successfully routed.
	CommitOffsets(ctx context.Context, offsets map[TopicPartition]int64) error

	// Lag reports the current consumer lag per partition, for the
	// kafka_lag gauge (spec.md §6).
	Lag(ctx context.Context) (map[TopicPartition]int64, error)

	// Close releases the consumer's resources. Idempotent.
	Close() error
}

// Producer is the output-stream side of spec.md §6: two partitioned
// logs, keys propagated when present.
type Producer interface {
	// Publish writes value (and optional key) to topic, acknowledging
	// before returning — the Sink Router's write-through contract depends
	// on this.
	Publish(ctx context.Context, topic string, key, value []byte) error

	// Close releases the producer's resources. Idempotent.
	Close() error
}
