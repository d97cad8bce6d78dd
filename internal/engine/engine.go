package engine

// file: internal/engine/engine.go

import (
	"context"
	"time"

	"github.com/kimosabey/dataquarantine/internal/dqerror"
	"github.com/kimosabey/dataquarantine/internal/logging"
	"github.com/kimosabey/dataquarantine/internal/metrics"
	"github.com/kimosabey/dataquarantine/internal/remediate"
	"github.com/kimosabey/dataquarantine/internal/schema"
	"github.com/kimosabey/dataquarantine/internal/validator"
)

var engineLogger = logging.GetLogger("validation_engine")

// RemediatorFactory builds a Remediator scoped to the schema document
// being validated against, since a structural remediator needs the
// schema's defaults/types to attempt a repair.
type RemediatorFactory func(doc schema.Document) remediate.Remediator

// Engine is the Validation Engine of spec.md §4.4: it ties the registry,
// the validator chain, and an optional remediator together, emitting
// metrics for every outcome. An Engine is concurrency-safe and may be
// called concurrently from multiple stream workers (spec.md §5(b)).
type Engine struct {
	registry          *schema.Registry
	chain             *validator.Chain
	metrics           *metrics.Collector
	enableRemediation bool
	remediatorFactory RemediatorFactory
	timeout           time.Duration // per-message budget; zero disables enforcement.
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithRemediation enables the single-shot remediation step using factory
// to build a Remediator per resolved schema document.
func WithRemediation(factory RemediatorFactory) Option {
	return func(e *Engine) {
		e.enableRemediation = true
		e.remediatorFactory = factory
	}
}

// WithTimeout bounds the wall-clock budget of a single Validate call.
// Exceeding it yields an ERROR outcome with error_kind = timeout,
// per spec.md §6's "validation timeout" configuration entry.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New constructs an Engine around registry, chain and a metrics
// collector. Remediation is disabled by default, matching spec.md §4.3.
func New(registry *schema.Registry, chain *validator.Chain, collector *metrics.Collector, opts ...Option) *Engine {
	e := &Engine{registry: registry, chain: chain, metrics: collector}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate implements spec.md §4.4's algorithm in full. It always returns
// a ValidationOutcome; it never panics for a message-level or
// engine-level failure.
func (e *Engine) Validate(ctx context.Context, payload map[string]interface{}, schemaName, schemaVersion, topic string) ValidationOutcome {
	start := time.Now()
	outcome := e.validate(ctx, payload, schemaName, schemaVersion, topic)
	e.metrics.RecordDuration(schemaName, time.Since(start).Seconds())
	return outcome
}

func (e *Engine) validate(ctx context.Context, payload map[string]interface{}, schemaName, schemaVersion, topic string) ValidationOutcome {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	doc, err := e.registry.Get(ctx, schemaName, schemaVersion)
	if err != nil {
		if outcome, timedOut := e.timeoutOutcome(ctx, payload); timedOut {
			return outcome
		}
		kind, ok := dqerror.KindOf(err)
		if !ok {
			kind = dqerror.KindSchemaNotFound
		}
		e.metrics.RecordSystemError(string(kind))
		engineLogger.Warn("schema resolution failed", "schema", schemaName, "version", schemaVersion, "kind", kind)
		return ValidationOutcome{Result: ResultError, ErrorKind: kind, ErrorMessage: err.Error(), Payload: payload}
	}
	if outcome, timedOut := e.timeoutOutcome(ctx, payload); timedOut {
		return outcome
	}

	verdict, validatorName, err := e.chain.Run(ctx, doc, payload)
	if err != nil {
		if outcome, timedOut := e.timeoutOutcome(ctx, payload); timedOut {
			return outcome
		}
		e.metrics.RecordSystemError(string(dqerror.KindValidationException))
		engineLogger.Error("validator fault", "schema", schemaName, "error", err)
		return ValidationOutcome{Result: ResultError, ErrorKind: dqerror.KindValidationException, ErrorMessage: err.Error(), Payload: payload}
	}
	if outcome, timedOut := e.timeoutOutcome(ctx, payload); timedOut {
		return outcome
	}

	if verdict == nil {
		e.metrics.RecordValid(topic, schemaName)
		return ValidationOutcome{Result: ResultValid, Payload: payload}
	}

	if e.enableRemediation {
		if repaired, ok := e.tryRemediate(ctx, doc, validatorName, payload, verdict); ok {
			e.metrics.RecordValid(topic, schemaName)
			return ValidationOutcome{Result: ResultValid, Remediated: true, Payload: repaired}
		}
	}

	e.metrics.RecordInvalid(topic, schemaName, string(verdict.Kind))
	return ValidationOutcome{
		Result:       ResultInvalid,
		ErrorKind:    verdict.Kind,
		ErrorMessage: verdict.Message,
		FieldPath:    verdict.FieldPath,
		Payload:      payload,
	}
}

// timeoutOutcome reports whether the per-message budget has elapsed. It
// checks ctx.Err() directly rather than trusting a collaborator's
// returned error to carry context.DeadlineExceeded, since validators are
// not required to respect cancellation on every code path.
func (e *Engine) timeoutOutcome(ctx context.Context, payload map[string]interface{}) (ValidationOutcome, bool) {
	if e.timeout == 0 || ctx.Err() == nil {
		return ValidationOutcome{}, false
	}
	e.metrics.RecordSystemError(string(dqerror.KindTimeout))
	return ValidationOutcome{Result: ResultError, ErrorKind: dqerror.KindTimeout, ErrorMessage: ctx.Err().Error(), Payload: payload}, true
}

// tryRemediate implements spec.md §4.3's single-shot discipline: offer
// the failing payload to the remediator, and if a repair is returned,
// re-run exactly the validator that rejected it exactly once. A second
// failure is terminal.
func (e *Engine) tryRemediate(ctx context.Context, doc schema.Document, validatorName string, payload map[string]interface{}, verdict *validator.ValidationError) (map[string]interface{}, bool) {
	remediator := e.remediatorFactory(doc)
	repaired, ok := remediator.TryRepair(payload, verdict)
	if !ok {
		return nil, false
	}

	secondVerdict, err := e.chain.RunOne(ctx, validatorName, doc, repaired)
	if err != nil || secondVerdict != nil {
		return nil, false
	}
	return repaired, true
}
