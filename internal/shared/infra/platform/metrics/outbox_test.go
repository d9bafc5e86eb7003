package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutbox_NilReceiverIsNoop(t *testing.T) {
	var m *Outbox

	assert.NotPanics(t, func() {
		m.IncrementDispatched("w", "k", OutcomeProcessed)
		m.IncrementCycleFailure("w")
		m.ObserveBatch("w", 3)
		m.ObserveDispatchDuration("w", "k", 0.1)
		m.SetLastSuccess("w", 1)
	})
}

func TestOutbox_CountsByOutcome(t *testing.T) {
	m := NewOutbox(prometheus.NewRegistry())

	m.IncrementDispatched("sql", "receipt.created", OutcomeProcessed)
	m.IncrementDispatched("sql", "receipt.created", OutcomeProcessed)
	m.IncrementDispatched("sql", "receipt.created", OutcomeSkipped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DispatchedCounter("sql", "receipt.created", OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchedCounter("sql", "receipt.created", OutcomeSkipped)))
}

func TestValidation_Verdicts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewValidation(reg)

	m.ObserveVerdict(true)
	m.ObserveVerdict(false)
	m.ObserveVerdict(false)
	m.IncrementRuleFault("TARIFF_EXISTS")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.verdicts.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ruleFaults.WithLabelValues("TARIFF_EXISTS")))

	var nilMetrics *Validation
	assert.NotPanics(t, func() { nilMetrics.ObserveVerdict(true) })
}
