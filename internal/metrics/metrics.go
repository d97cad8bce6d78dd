// Package metrics implements the Prometheus collector for the gateway,
// with metric names, label sets and bucket bounds exactly as spec.md
// §4.4 and §6 specify.
package metrics

// file: internal/metrics/metrics.go

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kimosabey/dataquarantine/internal/logging"
)

var metricsLogger = logging.GetLogger("metrics")

// durationBuckets are the histogram bucket bounds (seconds) spec.md §4.4
// step 7 mandates.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}

// Collector is the process-wide metrics object: a lifecycle value
// initialized once at worker start and passed by reference, per spec.md
// §9 ("process-wide metrics collector ... is a lifecycle object, not a
// language-level global").
type Collector struct {
	recordsProcessed  *prometheus.CounterVec
	recordsValid      *prometheus.CounterVec
	recordsInvalid    *prometheus.CounterVec
	recordsQuarantine *prometheus.CounterVec
	validationSeconds *prometheus.HistogramVec
	kafkaLag          *prometheus.GaugeVec
	systemErrors      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector constructs a Collector registered against its own private
// Prometheus registry, so multiple Collectors (e.g. in tests) never
// collide on global registration.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		recordsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dataquarantine_records_processed_total",
			Help: "Total number of records processed",
		}, []string{"topic", "schema"}),
		recordsValid: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dataquarantine_records_valid_total",
			Help: "Total number of valid records",
		}, []string{"topic", "schema"}),
		recordsInvalid: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dataquarantine_records_invalid_total",
			Help: "Total number of invalid records",
		}, []string{"topic", "schema", "error_kind"}),
		recordsQuarantine: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dataquarantine_records_quarantined_total",
			Help: "Total number of quarantined records",
		}, []string{"topic", "schema", "error_kind"}),
		validationSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataquarantine_validation_duration_seconds",
			Help:    "Time spent validating messages",
			Buckets: durationBuckets,
		}, []string{"schema"}),
		kafkaLag: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "dataquarantine_kafka_lag",
			Help: "Kafka consumer lag",
		}, []string{"topic", "partition"}),
		systemErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dataquarantine_system_errors_total",
			Help: "Total number of system errors",
		}, []string{"kind"}),
	}
	return c
}

// RecordProcessed increments records_processed_total{topic,schema}.
func (c *Collector) RecordProcessed(topic, schemaName string) {
	c.recordsProcessed.WithLabelValues(topic, schemaName).Inc()
}

// RecordValid increments records_valid_total and records_processed_total.
func (c *Collector) RecordValid(topic, schemaName string) {
	c.recordsValid.WithLabelValues(topic, schemaName).Inc()
	c.RecordProcessed(topic, schemaName)
}

// RecordInvalid increments records_invalid_total and records_processed_total.
func (c *Collector) RecordInvalid(topic, schemaName, errorKind string) {
	c.recordsInvalid.WithLabelValues(topic, schemaName, errorKind).Inc()
	c.RecordProcessed(topic, schemaName)
}

// RecordQuarantined increments records_quarantined_total.
func (c *Collector) RecordQuarantined(topic, schemaName, errorKind string) {
	c.recordsQuarantine.WithLabelValues(topic, schemaName, errorKind).Inc()
}

// RecordDuration observes a validation's wall-clock duration in seconds.
func (c *Collector) RecordDuration(schemaName string, seconds float64) {
	c.validationSeconds.WithLabelValues(schemaName).Observe(seconds)
}

// RecordSystemError increments system_errors_total{kind}.
func (c *Collector) RecordSystemError(kind string) {
	c.systemErrors.WithLabelValues(kind).Inc()
}

// SetKafkaLag sets the lag gauge for a (topic, partition) pair.
func (c *Collector) SetKafkaLag(topic string, partition int, lag int64) {
	c.kafkaLag.WithLabelValues(topic, strconv.Itoa(partition)).Set(float64(lag))
}

// Handler returns an http.Handler serving this Collector's metrics in the
// Prometheus exposition format, for wiring into the scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing the scrape endpoint at addr and
// blocks until it errors or the listener is closed. Mirrors the original
// implementation's start_server, which is why it logs identically.
func (c *Collector) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	metricsLogger.Info("prometheus metrics server starting", "addr", addr)
	return http.ListenAndServe(addr, mux) //nolint:gosec // internal operational endpoint, not internet-facing.
}
