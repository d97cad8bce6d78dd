package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordValidIncrementsBothCounters(t *testing.T) {
	c := NewCollector()
	c.RecordValid("raw-events", "user_event")

	assert.Equal(t, float64(1), testutil.ToFloat64(c.recordsValid.WithLabelValues("raw-events", "user_event")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.recordsProcessed.WithLabelValues("raw-events", "user_event")))
}

func TestRecordInvalidIncrementsBothCounters(t *testing.T) {
	c := NewCollector()
	c.RecordInvalid("raw-events", "user_event", "missing_field")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.recordsInvalid.WithLabelValues("raw-events", "user_event", "missing_field")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.recordsProcessed.WithLabelValues("raw-events", "user_event")))
}

func TestRecordSystemError(t *testing.T) {
	c := NewCollector()
	c.RecordSystemError("timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(c.systemErrors.WithLabelValues("timeout")))
}

func TestSetKafkaLag(t *testing.T) {
	c := NewCollector()
	c.SetKafkaLag("raw-events", 3, 42)
	assert.Equal(t, float64(42), testutil.ToFloat64(c.kafkaLag.WithLabelValues("raw-events", "3")))
}
