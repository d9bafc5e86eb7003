package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resultados de despacho
const (
	OutcomeProcessed    = "processed"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeSkipped      = "skipped"
)

// Outbox agrupa las métricas del dispatcher. Todos los métodos aceptan receptor nil.
type Outbox struct {
	dispatched       *prometheus.CounterVec
	cycleFailures    *prometheus.CounterVec
	batchSize        *prometheus.HistogramVec
	dispatchDuration *prometheus.HistogramVec
	lastSuccess      *prometheus.GaugeVec
}

// NewOutbox registra las métricas en reg (prometheus.DefaultRegisterer en producción).
func NewOutbox(reg prometheus.Registerer) *Outbox {
	f := promauto.With(reg)
	return &Outbox{
		dispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "customsflow_outbox_dispatched_total",
			Help: "Outbox messages handled by the dispatcher, by event type and outcome",
		}, []string{"worker", "event_type", "outcome"}),
		cycleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "customsflow_outbox_cycle_failures_total",
			Help: "Dispatcher cycles aborted by a store fault",
		}, []string{"worker"}),
		batchSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "customsflow_outbox_batch_size",
			Help:    "Messages fetched per dispatcher cycle",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"worker"}),
		dispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "customsflow_outbox_dispatch_duration_seconds",
			Help:    "Time spent running the handlers of one message",
			Buckets: prometheus.DefBuckets,
		}, []string{"worker", "event_type"}),
		lastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "customsflow_outbox_last_success_timestamp_seconds",
			Help: "Unix time of the last dispatcher cycle that completed without a store fault",
		}, []string{"worker"}),
	}
}

func (m *Outbox) IncrementDispatched(worker, eventType, outcome string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(worker, eventType, outcome).Inc()
}

func (m *Outbox) IncrementCycleFailure(worker string) {
	if m == nil {
		return
	}
	m.cycleFailures.WithLabelValues(worker).Inc()
}

func (m *Outbox) ObserveBatch(worker string, size int) {
	if m == nil {
		return
	}
	m.batchSize.WithLabelValues(worker).Observe(float64(size))
}

func (m *Outbox) ObserveDispatchDuration(worker, eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(worker, eventType).Observe(seconds)
}

func (m *Outbox) SetLastSuccess(worker string, unixSeconds float64) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(worker).Set(unixSeconds)
}

// DispatchedCounter expone el contador de una combinación de etiquetas (tests y diagnóstico).
func (m *Outbox) DispatchedCounter(worker, eventType, outcome string) prometheus.Counter {
	return m.dispatched.WithLabelValues(worker, eventType, outcome)
}
