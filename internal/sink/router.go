// Package sink implements the Sink Router (spec.md §4.6): publishing
// valid payloads to the validated stream and writing-through non-
// conforming payloads to the quarantine stream, the quarantine index,
// and (optionally) the blob store.
package sink

// file: internal/sink/router.go

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kimosabey/dataquarantine/internal/engine"
	"github.com/kimosabey/dataquarantine/internal/logging"
	"github.com/kimosabey/dataquarantine/internal/metrics"
	"github.com/kimosabey/dataquarantine/internal/quarantine"
	"github.com/kimosabey/dataquarantine/internal/stream"
)

var routerLogger = logging.GetLogger("sink_router")

// pendingQuarantine is one buffered-but-not-yet-flushed quarantine write:
// everything routeQuarantine needs to publish to the DLQ topic and write
// the index row, computed eagerly so flush itself does no more work than
// the two acknowledged writes.
type pendingQuarantine struct {
	record  quarantine.Record
	key     []byte
	encoded []byte
	topic   string
	schema  string
	kind    string
}

// Router is the Sink Router. Valid payloads are published immediately.
// Quarantine writes are buffered up to batchSize and flushed
// synchronously — either when the buffer fills or when the caller
// explicitly calls FlushQuarantine at the end of a poll cycle — so a
// buffered record never survives past the cycle in which it was
// produced (spec.md §5's bounded-size write buffer).
type Router struct {
	validated      stream.Producer
	quarantine     stream.Producer
	validatedTopic string
	dlqTopic       string
	index          quarantine.Index
	blob           quarantine.BlobStore // nil if blob externalization is disabled.
	blobThreshold  int
	batchSize      int
	metrics        *metrics.Collector

	mu      sync.Mutex
	pending []pendingQuarantine
}

// Config configures a Router.
type Config struct {
	ValidatedProducer  stream.Producer
	QuarantineProducer stream.Producer
	ValidatedTopic     string
	DLQTopic           string
	Index              quarantine.Index
	Blob               quarantine.BlobStore
	BlobThresholdBytes int
	// BatchSize bounds the quarantine write buffer (spec.md §6's
	// "quarantine batch size"). Values <= 1 disable buffering: every
	// quarantine record flushes as soon as it is routed.
	BatchSize int
	Metrics   *metrics.Collector
}

// NewRouter constructs a Router from cfg.
func NewRouter(cfg Config) *Router {
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	return &Router{
		validated:      cfg.ValidatedProducer,
		quarantine:     cfg.QuarantineProducer,
		validatedTopic: cfg.ValidatedTopic,
		dlqTopic:       cfg.DLQTopic,
		index:          cfg.Index,
		blob:           cfg.Blob,
		blobThreshold:  cfg.BlobThresholdBytes,
		batchSize:      batchSize,
		metrics:        cfg.Metrics,
	}
}

// Route delivers msg according to outcome: VALID payloads go to the
// validated stream; INVALID/ERROR outcomes become a quarantine record
// written through to both the quarantine stream and the index. A VALID
// publish is acknowledged before Route returns. A quarantine record is
// buffered and written (each write acknowledged) once the buffer reaches
// the batch size or on the next FlushQuarantine, so with a batch size
// above 1 Route can return before the record is written.
func (r *Router) Route(ctx context.Context, msg stream.Message, payload map[string]interface{}, schemaName string, outcome engine.ValidationOutcome) error {
	if outcome.Result == engine.ResultValid {
		return r.routeValid(ctx, msg, payload)
	}
	return r.routeQuarantine(ctx, msg, payload, schemaName, outcome)
}

func (r *Router) routeValid(ctx context.Context, msg stream.Message, payload map[string]interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sink: re-encoding validated payload: %w", err)
	}

	key := msg.Key
	if len(key) == 0 {
		key = deriveKey(payload)
	}
	if err := r.validated.Publish(ctx, r.validatedTopic, key, value); err != nil {
		return fmt.Errorf("sink: publishing to validated stream: %w", err)
	}
	return nil
}

// routeQuarantine buffers msg's quarantine record and, once the buffer
// reaches batchSize, flushes synchronously before returning. A record
// that only fills the buffer partway is held until flush, either by a
// later call filling it the rest of the way or by the caller's explicit
// FlushQuarantine at the end of the poll cycle — so it never survives
// past the cycle that produced it. Until that flush, Route has already
// returned nil for the record even though it is not yet written.
func (r *Router) routeQuarantine(ctx context.Context, msg stream.Message, payload map[string]interface{}, schemaName string, outcome engine.ValidationOutcome) error {
	id := RecordID(msg.Topic, msg.Partition, msg.Offset)

	record := quarantine.Record{
		ID:           id,
		Topic:        msg.Topic,
		Partition:    msg.Partition,
		Offset:       msg.Offset,
		SchemaName:   schemaName,
		ErrorKind:    string(outcome.ErrorKind),
		ErrorMessage: outcome.ErrorMessage,
		FieldPath:    outcome.FieldPath,
		CreatedAt:    time.Now().UTC(),
		Payload:      payload,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sink: encoding quarantined payload: %w", err)
	}
	if r.blob != nil && r.blobThreshold > 0 && len(encoded) > r.blobThreshold {
		uri, err := r.blob.Put(ctx, id+".json", encoded)
		if err != nil {
			return fmt.Errorf("sink: externalizing oversized payload: %w", err)
		}
		record.PayloadURI = uri
		record.Payload = nil
	}

	r.mu.Lock()
	r.pending = append(r.pending, pendingQuarantine{
		record:  record,
		key:     msg.Key,
		encoded: encoded,
		topic:   msg.Topic,
		schema:  schemaName,
		kind:    string(outcome.ErrorKind),
	})
	full := len(r.pending) >= r.batchSize
	r.mu.Unlock()

	if full {
		return r.FlushQuarantine(ctx)
	}
	return nil
}

// FlushQuarantine writes through every currently buffered quarantine
// record to the DLQ topic and the index, acknowledging each write before
// returning, then empties the buffer. Called automatically once the
// buffer fills and must also be called by the caller once a poll cycle's
// messages are exhausted, so a partial batch never survives past the
// cycle that produced it.
func (r *Router) FlushQuarantine(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, p := range batch {
		if err := r.quarantine.Publish(ctx, r.dlqTopic, p.key, p.encoded); err != nil {
			return fmt.Errorf("sink: publishing to quarantine stream: %w", err)
		}
		if err := r.index.Write(ctx, p.record); err != nil {
			return fmt.Errorf("sink: writing quarantine index: %w", err)
		}
		r.metrics.RecordQuarantined(p.topic, p.schema, p.kind)
		routerLogger.Debug("quarantined message", "id", p.record.ID, "kind", p.kind, "field_path", p.record.FieldPath)
	}
	return nil
}

// RecordID computes the deterministic quarantine record id spec.md §4.6
// requires: the same (topic, partition, offset) always yields the same
// id, so a retried delivery collapses at the index rather than
// duplicating.
func RecordID(topic string, partition int, offset int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", topic, partition, offset)))
	return hex.EncodeToString(sum[:16])
}

// deriveKey falls back to the payload's user_id (or id) field when the
// source message carried no key, per spec.md §4.6's "by payload
// user_id/similar agreed attribute when key is absent".
func deriveKey(payload map[string]interface{}) []byte {
	for _, field := range []string{"user_id", "id"} {
		if v, ok := payload[field].(string); ok && v != "" {
			return []byte(v)
		}
	}
	return nil
}
