// Package stream implements the input/output stream clients: a Consumer
// abstraction over the partitioned, offset-addressable input log and a
// Producer abstraction over the validated/quarantine output logs, backed
// by github.com/segmentio/kafka-go.
package stream

// file: internal/stream/message.go

import "time"

// Message is spec.md §3's Message: a raw stream record plus the
// provenance attributes carried with it end-to-end. Value holds the raw
// bytes; decoding into a Payload happens in the stream worker, not here,
// so a decode failure can be attributed to a specific message.
type Message struct {
	Value     []byte
	Key       []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

// TopicPartition identifies one partition of one topic, the unit offsets
// are committed against.
type TopicPartition struct {
	Topic     string
	Partition int
}
