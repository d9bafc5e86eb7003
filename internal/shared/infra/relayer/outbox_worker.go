package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MessageDispatcher entrega un mensaje a sus handlers (Registry en producción).
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg sharedDomain.OutboxMessage) error
}

// WorkerConfig agrupa los parámetros de un worker.
// CycleTimeout acota un ciclo completo; con cero vale Interval + Backoff.
type WorkerConfig struct {
	Name         string
	Interval     time.Duration
	Backoff      time.Duration
	BatchSize    int
	Retry        RetryPolicy
	CycleTimeout time.Duration
}

func (c WorkerConfig) cycleTimeout() time.Duration {
	if c.CycleTimeout > 0 {
		return c.CycleTimeout
	}
	return c.Interval + c.Backoff
}

func DefaultWorkerConfig(name string) WorkerConfig {
	return WorkerConfig{
		Name:      name,
		Interval:  10 * time.Second,
		Backoff:   30 * time.Second,
		BatchSize: 50,
		Retry:     DefaultRetryPolicy(),
	}
}

// Worker drena el outbox: un ciclo cada Interval, y Backoff tras un fallo del almacén.
type Worker struct {
	store      sharedDomain.OutboxStore
	dispatcher MessageDispatcher
	clock      sharedDomain.Clock
	cfg        WorkerConfig
	metrics    *metrics.Outbox
	tracer     trace.Tracer
	log        *zap.Logger

	startedAt   atomic.Int64
	lastSuccess atomic.Int64
}

func NewOutboxWorker(
	store sharedDomain.OutboxStore,
	dispatcher MessageDispatcher,
	clock sharedDomain.Clock,
	cfg WorkerConfig,
	m *metrics.Outbox,
	log *zap.Logger,
) *Worker {
	w := &Worker{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
		metrics:    m,
		tracer:     otel.Tracer("customsflow/relayer"),
		log:        log.With(zap.String("worker", cfg.Name)),
	}
	w.startedAt.Store(clock.Now().UnixNano())
	return w
}

func (w *Worker) Name() string {
	return w.cfg.Name
}

// Start ejecuta el bucle de polling hasta que ctx se cancela. Un lote en curso se
// termina antes de salir, pero nunca dura más de CycleTimeout: un almacén colgado no
// bloquea el apagado.
func (w *Worker) Start(ctx context.Context) {
	w.startedAt.Store(w.clock.Now().UnixNano())
	w.log.Info("🚀 Outbox worker iniciado",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("backoff", w.cfg.Backoff),
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Int("max_attempts", w.cfg.Retry.MaxAttempts),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido")
			return
		case <-timer.C:
		}

		wait := w.cfg.Interval
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.cycleTimeout())
		err := w.ProcessBatch(cycleCtx)
		cancel()
		if err != nil {
			wait = w.cfg.Backoff
			w.log.Error("⚠️ Ciclo de outbox fallido, esperando backoff",
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
		}
		timer.Reset(wait)
	}
}

// ProcessBatch ejecuta un ciclo: obtiene un lote, despacha cada mensaje y persiste su resultado.
// Devuelve error sólo ante fallos del almacén; los fallos de handlers quedan en el propio mensaje.
func (w *Worker) ProcessBatch(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "outbox.cycle", trace.WithAttributes(attribute.String("worker", w.cfg.Name)))
	defer span.End()

	msgs, err := w.store.FetchPending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.metrics.IncrementCycleFailure(w.cfg.Name)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("fetch pending outbox: %w", err)
	}

	w.metrics.ObserveBatch(w.cfg.Name, len(msgs))
	span.SetAttributes(attribute.Int("batch", len(msgs)))
	if len(msgs) > 0 {
		w.log.Info(fmt.Sprintf("📬 %d eventos encontrados para procesar", len(msgs)))
	}

	var storeErrs []error
	for _, msg := range msgs {
		if err := w.dispatchAndMark(ctx, msg); err != nil {
			storeErrs = append(storeErrs, err)
		}
	}
	if len(storeErrs) > 0 {
		w.metrics.IncrementCycleFailure(w.cfg.Name)
		err := errors.Join(storeErrs...)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	now := w.clock.Now()
	w.lastSuccess.Store(now.UnixNano())
	w.metrics.SetLastSuccess(w.cfg.Name, float64(now.UnixNano())/1e9)
	return nil
}

// dispatchAndMark sólo devuelve error si no se pudo persistir el resultado.
func (w *Worker) dispatchAndMark(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	ctx, span := w.tracer.Start(ctx, "outbox.dispatch", trace.WithAttributes(
		attribute.String("event_id", msg.ID.String()),
		attribute.String("event_type", msg.EventType),
		attribute.Int("attempt", msg.Attempts+1),
	))
	defer span.End()

	fields := []zap.Field{
		zap.String("event_id", msg.ID.String()),
		zap.String("event_type", msg.EventType),
		zap.Int("attempt", msg.Attempts+1),
	}

	started := time.Now()
	dispatchErr := w.dispatcher.Dispatch(ctx, msg)
	w.metrics.ObserveDispatchDuration(w.cfg.Name, msg.EventType, time.Since(started).Seconds())

	switch {
	case dispatchErr == nil:
		if err := w.store.MarkProcessed(ctx, msg.ID, nil); err != nil {
			return w.markFailed(span, msg, err)
		}
		w.metrics.IncrementDispatched(w.cfg.Name, msg.EventType, metrics.OutcomeProcessed)
		w.log.Info("✅ Evento despachado y marcado", fields...)

	case errors.Is(dispatchErr, events.ErrUnknownEventType), errors.Is(dispatchErr, ErrNoHandler):
		// Hueco de configuración, no pérdida de datos: se cierra sin error.
		if err := w.store.MarkProcessed(ctx, msg.ID, nil); err != nil {
			return w.markFailed(span, msg, err)
		}
		w.metrics.IncrementDispatched(w.cfg.Name, msg.EventType, metrics.OutcomeSkipped)
		w.log.Warn("Tipo de evento sin handler, se marca como procesado", append(fields, zap.Error(dispatchErr))...)

	default:
		span.RecordError(dispatchErr)
		attempt := msg.Attempts + 1
		if w.cfg.Retry.Exhausted(attempt) {
			if err := w.store.MarkProcessed(ctx, msg.ID, dispatchErr); err != nil {
				return w.markFailed(span, msg, err)
			}
			w.metrics.IncrementDispatched(w.cfg.Name, msg.EventType, metrics.OutcomeDeadLettered)
			w.log.Error("☠️ Evento descartado tras agotar reintentos", append(fields, zap.Error(dispatchErr))...)
			return nil
		}

		next := w.clock.Now().Add(w.cfg.Retry.Backoff(attempt))
		if err := w.store.ScheduleRetry(ctx, msg.ID, dispatchErr, next); err != nil {
			return w.markFailed(span, msg, err)
		}
		w.metrics.IncrementDispatched(w.cfg.Name, msg.EventType, metrics.OutcomeRetried)
		w.log.Warn("⚠️ Handler fallido, reintento programado",
			append(fields, zap.Time("next_attempt_at", next), zap.Error(dispatchErr))...)
	}
	return nil
}

func (w *Worker) markFailed(span trace.Span, msg sharedDomain.OutboxMessage, err error) error {
	span.SetStatus(codes.Error, err.Error())
	w.log.Warn("⚠️ No se pudo registrar el resultado del evento",
		zap.String("event_id", msg.ID.String()),
		zap.Error(err),
	)
	return fmt.Errorf("record outcome of %s: %w", msg.ID, err)
}

// ---------------- Liveness ----------------

// LastSuccessfulCycle devuelve el instante del último ciclo sin fallos (cero si aún no hubo).
func (w *Worker) LastSuccessfulCycle() time.Time {
	ns := w.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// StaleAfter es la antigüedad a partir de la cual el worker se considera caído.
func (w *Worker) StaleAfter() time.Duration {
	return 3*w.cfg.Interval + w.cfg.Backoff
}

// Healthy indica si hubo un ciclo correcto dentro de StaleAfter. Antes del primer ciclo
// se toma como referencia el arranque.
func (w *Worker) Healthy() bool {
	ref := w.lastSuccess.Load()
	if ref == 0 {
		ref = w.startedAt.Load()
	}
	return w.clock.Now().Sub(time.Unix(0, ref)) <= w.StaleAfter()
}
