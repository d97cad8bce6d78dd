// Package worker implements the Stream Worker (spec.md §4.5): the outer
// poll-validate-route-commit loop that ties the registry, engine, and
// sink router into the at-least-once correctness contract.
package worker

// file: internal/worker/worker.go

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/kimosabey/dataquarantine/internal/dqerror"
	"github.com/kimosabey/dataquarantine/internal/engine"
	"github.com/kimosabey/dataquarantine/internal/fsm"
	"github.com/kimosabey/dataquarantine/internal/logging"
	"github.com/kimosabey/dataquarantine/internal/payload"
	"github.com/kimosabey/dataquarantine/internal/sink"
	"github.com/kimosabey/dataquarantine/internal/stream"
)

var workerLogger = logging.GetLogger("stream_worker")

const (
	stateIdle     fsm.State = "idle"
	statePolling  fsm.State = "polling"
	stateDraining fsm.State = "draining"
	stateStopped  fsm.State = "stopped"

	eventStartPoll  = fsm.Event("start_poll")
	eventReturnIdle = fsm.Event("return_idle")
	eventDrain      = fsm.Event("drain")
	eventStop       = fsm.Event("stop")
)

// Config configures a Worker.
type Config struct {
	Consumer       stream.Consumer
	Router         *sink.Router
	Engine         *engine.Engine
	Topic          string
	SchemaIDField  string // payload field naming the schema; defaults to "_schema".
	MaxPollRecords int
}

// Worker is the Stream Worker. Its lifecycle (idle/polling/draining/
// stopped) is modeled with the same generic FSM wrapper used elsewhere
// in the codebase, mostly for the observability of named states; the
// actual control flow lives in Run's loop, which is what honors the
// shutdown checkpoints spec.md §5 requires.
type Worker struct {
	consumer       stream.Consumer
	router         *sink.Router
	engine         *engine.Engine
	topic          string
	schemaIDField  string
	maxPollRecords int

	lifecycle fsm.FSM

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Worker from cfg.
func New(cfg Config) *Worker {
	schemaIDField := cfg.SchemaIDField
	if schemaIDField == "" {
		schemaIDField = "_schema"
	}

	lifecycle := fsm.NewFSM(stateIdle, workerLogger)
	lifecycle.AddTransition(fsm.Transition{From: []fsm.State{stateIdle}, To: statePolling, Event: eventStartPoll})
	lifecycle.AddTransition(fsm.Transition{From: []fsm.State{statePolling}, To: stateIdle, Event: eventReturnIdle})
	lifecycle.AddTransition(fsm.Transition{From: []fsm.State{statePolling, stateIdle}, To: stateDraining, Event: eventDrain})
	lifecycle.AddTransition(fsm.Transition{From: []fsm.State{stateDraining, stateIdle}, To: stateStopped, Event: eventStop})
	if err := lifecycle.Build(); err != nil {
		workerLogger.Error("failed to build worker lifecycle FSM", "error", err)
	}

	return &Worker{
		consumer:       cfg.Consumer,
		router:         cfg.Router,
		engine:         cfg.Engine,
		topic:          cfg.Topic,
		schemaIDField:  schemaIDField,
		maxPollRecords: cfg.MaxPollRecords,
		lifecycle:      lifecycle,
		stopCh:         make(chan struct{}),
	}
}

// Shutdown requests the worker stop at the next checkpoint. Idempotent.
func (w *Worker) Shutdown() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Worker) shutdownRequested() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// Run drives the loop until ctx is canceled or Shutdown is called. It
// honors the two checkpoints spec.md §5 names: before a poll, and
// between messages within a polled batch. A shutdown mid-batch completes
// the current message (route, add to the pending commit set) before
// returning, so already-routed messages have their offsets committed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if w.shutdownRequested() || ctx.Err() != nil {
			_ = w.lifecycle.Transition(ctx, eventDrain, nil)
			_ = w.lifecycle.Transition(ctx, eventStop, nil)
			return ctx.Err()
		}

		if err := w.lifecycle.Transition(ctx, eventStartPoll, nil); err != nil {
			workerLogger.Debug("lifecycle transition skipped", "error", err)
		}

		messages, err := w.consumer.Poll(ctx, w.maxPollRecords)
		if err != nil {
			return fmt.Errorf("worker: poll failed: %w", err)
		}
		if len(messages) == 0 {
			_ = w.lifecycle.Transition(ctx, eventReturnIdle, nil)
			continue
		}

		stopMidBatch, commitErr := w.processBatch(ctx, messages)
		_ = w.lifecycle.Transition(ctx, eventReturnIdle, nil)
		if commitErr != nil {
			return commitErr
		}
		if stopMidBatch {
			_ = w.lifecycle.Transition(ctx, eventDrain, nil)
			_ = w.lifecycle.Transition(ctx, eventStop, nil)
			return nil
		}
	}
}

// processBatch validates and routes every message in order, advancing
// the commit set as it goes, and commits offsets once the batch (or the
// portion completed before a shutdown request) is fully routed.
func (w *Worker) processBatch(ctx context.Context, messages []stream.Message) (stoppedMidBatch bool, err error) {
	seen := make(map[stream.TopicPartition]int64)

	for _, msg := range messages {
		if w.shutdownRequested() {
			stoppedMidBatch = true
			break
		}

		schemaName, outcome := w.evaluate(ctx, msg)
		if routeErr := w.router.Route(ctx, msg, outcome.Payload, schemaName, outcome); routeErr != nil {
			// Infrastructure failure: surface it and terminate without
			// committing this message's offset, preserving at-least-once.
			return stoppedMidBatch, fmt.Errorf("worker: routing message at offset %d: %w", msg.Offset, routeErr)
		}

		tp := stream.TopicPartition{Topic: msg.Topic, Partition: msg.Partition}
		if cur, ok := seen[tp]; !ok || msg.Offset > cur {
			seen[tp] = msg.Offset
		}
	}

	if len(seen) == 0 {
		return stoppedMidBatch, nil
	}

	// Flush any quarantine records still sitting in the router's write
	// buffer before committing: a partial batch must never survive past
	// the poll cycle that produced it (spec.md §6's quarantine batch
	// size), and its offset must not advance until it is durably written.
	if err := w.router.FlushQuarantine(ctx); err != nil {
		return stoppedMidBatch, fmt.Errorf("worker: flushing quarantine batch: %w", err)
	}

	commits := make(map[stream.TopicPartition]int64, len(seen))
	for tp, offset := range seen {
		commits[tp] = offset + 1
	}
	if err := w.consumer.CommitOffsets(ctx, commits); err != nil {
		return stoppedMidBatch, fmt.Errorf("worker: committing offsets: %w", err)
	}
	return stoppedMidBatch, nil
}

// evaluate decodes msg and produces a ValidationOutcome, synthesizing
// the pseudo-payloads spec.md §4.5 steps 1-2 describe for decode
// failures and missing schema identifiers, without invoking the engine
// for those two cases.
func (w *Worker) evaluate(ctx context.Context, msg stream.Message) (string, engine.ValidationOutcome) {
	decoded, err := payload.Decode(msg.Value)
	if err != nil {
		pseudo := map[string]interface{}{
			"_deserialization_error": true,
			"_raw_value":             toLossyUTF8(msg.Value),
			"_error":                 err.Error(),
		}
		return "", engine.ValidationOutcome{
			Result:       engine.ResultInvalid,
			ErrorKind:    dqerror.KindMalformedJSON,
			ErrorMessage: err.Error(),
			FieldPath:    "root",
			Payload:      pseudo,
		}
	}

	schemaName, _ := decoded[w.schemaIDField].(string)
	if schemaName == "" {
		return "", engine.ValidationOutcome{
			Result:       engine.ResultInvalid,
			ErrorKind:    dqerror.KindMissingSchema,
			ErrorMessage: fmt.Sprintf("payload has no %q field", w.schemaIDField),
			FieldPath:    "root",
			Payload:      decoded,
		}
	}

	outcome := w.engine.Validate(ctx, decoded, schemaName, "latest", w.topic)
	return schemaName, outcome
}

// toLossyUTF8 returns s as a valid UTF-8 string, replacing invalid byte
// sequences, since the raw bytes of a malformed JSON message may not be
// valid text.
func toLossyUTF8(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return string([]rune(string(raw)))
}
