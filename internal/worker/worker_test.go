package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimosabey/dataquarantine/internal/engine"
	"github.com/kimosabey/dataquarantine/internal/metrics"
	"github.com/kimosabey/dataquarantine/internal/quarantine"
	"github.com/kimosabey/dataquarantine/internal/schema"
	"github.com/kimosabey/dataquarantine/internal/sink"
	"github.com/kimosabey/dataquarantine/internal/stream"
	"github.com/kimosabey/dataquarantine/internal/validator"
)

const userEventSchemaJSON = `{
	"type": "object",
	"properties": {
		"user_id": {"type": "string"},
		"event_type": {"type": "string"}
	},
	"required": ["user_id", "event_type"]
}`

func newTestWorker(t *testing.T, messages ...stream.Message) (*Worker, *stream.FakeConsumer, *stream.FakeProducer, *quarantine.FakeIndex) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user_event.json"), []byte(userEventSchemaJSON), 0o600))

	reg := schema.NewRegistry(schema.NewDirectorySource(dir), time.Minute)
	chain := validator.NewChain(validator.NewJSONSchemaValidator())
	collector := metrics.NewCollector()
	eng := engine.New(reg, chain, collector)

	validatedProducer := stream.NewFakeProducer()
	dlqProducer := stream.NewFakeProducer()
	index := quarantine.NewFakeIndex()
	router := sink.NewRouter(sink.Config{
		ValidatedProducer:  validatedProducer,
		QuarantineProducer: dlqProducer,
		ValidatedTopic:     "validated-events",
		DLQTopic:           "quarantine-dlq",
		Index:              index,
		Metrics:            collector,
	})

	consumer := stream.NewFakeConsumer(messages...)
	w := New(Config{
		Consumer:       consumer,
		Router:         router,
		Engine:         eng,
		Topic:          "raw-events",
		MaxPollRecords: 10,
	})
	return w, consumer, dlqProducer, index
}

func runUntilDrained(t *testing.T, w *Worker, consumer *stream.FakeConsumer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(500 * time.Millisecond)
	for consumer.Remaining() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	w.Shutdown()
	<-done
}

func TestWorkerRoutesValidMessageAndCommits(t *testing.T) {
	msg := stream.Message{
		Topic: "raw-events", Partition: 0, Offset: 5,
		Value: []byte(`{"_schema":"user_event","user_id":"USER123456","event_type":"purchase"}`),
	}
	w, consumer, _, _ := newTestWorker(t, msg)
	runUntilDrained(t, w, consumer)

	tp := stream.TopicPartition{Topic: "raw-events", Partition: 0}
	assert.Equal(t, int64(6), consumer.Committed[tp])
}

func TestWorkerQuarantinesMissingSchemaField(t *testing.T) {
	msg := stream.Message{
		Topic: "raw-events", Partition: 0, Offset: 0,
		Value: []byte(`{"user_id":"USER123456","event_type":"purchase"}`),
	}
	w, consumer, dlq, index := newTestWorker(t, msg)
	runUntilDrained(t, w, consumer)

	require.Len(t, dlq.Published, 1)
	require.Len(t, index.Records, 1)
	for _, record := range index.Records {
		assert.Equal(t, "missing_schema", record.ErrorKind)
		assert.Equal(t, "root", record.FieldPath)
	}
}

func TestWorkerQuarantinesMalformedJSON(t *testing.T) {
	msg := stream.Message{
		Topic: "raw-events", Partition: 0, Offset: 0,
		Value: []byte(`{not valid json`),
	}
	w, consumer, dlq, index := newTestWorker(t, msg)
	runUntilDrained(t, w, consumer)

	require.Len(t, dlq.Published, 1)
	require.Len(t, index.Records, 1)
	for _, record := range index.Records {
		assert.Equal(t, "malformed_json", record.ErrorKind)
	}
}

func TestWorkerShutdownIsIdempotent(t *testing.T) {
	w, _, _, _ := newTestWorker(t)
	w.Shutdown()
	w.Shutdown() // must not panic.
	assert.True(t, w.shutdownRequested())
}
