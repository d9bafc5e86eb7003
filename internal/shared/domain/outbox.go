package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/google/uuid"
)

// OutboxMessage es la fila duradera de un evento pendiente de despacho.
// ProcessedAt == nil significa pendiente; una vez fijado el mensaje no vuelve a seleccionarse.
type OutboxMessage struct {
	ID            uuid.UUID       `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
	ProcessedAt   *time.Time      `json:"processedAt,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt *time.Time      `json:"nextAttemptAt,omitempty"`
}

func (m OutboxMessage) IsPending() bool {
	return m.ProcessedAt == nil
}

// IsDeadLettered indica un mensaje cerrado con error: no se reintentará salvo Requeue.
func (m OutboxMessage) IsDeadLettered() bool {
	return m.ProcessedAt != nil && m.LastError != ""
}

// NewOutboxMessage convierte un evento de dominio en su fila de outbox.
func NewOutboxMessage(evt events.DomainEvent) (OutboxMessage, error) {
	payload, err := events.Encode(evt)
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		ID:            evt.EventID(),
		AggregateType: evt.AggregateType(),
		AggregateID:   evt.AggregateID(),
		EventType:     string(evt.Kind()),
		Payload:       payload,
		OccurredAt:    evt.OccurredAt(),
	}, nil
}

// CollectOutboxMessages reúne los eventos pendientes de todas las fuentes, en orden de registro.
func CollectOutboxMessages(sources []EventSource) ([]OutboxMessage, error) {
	var msgs []OutboxMessage
	for _, src := range sources {
		for _, evt := range src.PendingEvents() {
			msg, err := NewOutboxMessage(evt)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

// OutboxStore es el puerto de persistencia del outbox.
type OutboxStore interface {
	// InsertOutboxMessage sólo es válido dentro de una unidad de trabajo (la transacción viaja en ctx).
	InsertOutboxMessage(ctx context.Context, msg OutboxMessage) error

	// FetchPending devuelve los N mensajes pendientes más antiguos y ya vencidos, por OccurredAt ascendente.
	FetchPending(ctx context.Context, limit int) ([]OutboxMessage, error)

	// MarkProcessed fija ProcessedAt. Con dispatchErr != nil el mensaje queda cerrado con LastError.
	MarkProcessed(ctx context.Context, id uuid.UUID, dispatchErr error) error

	// ScheduleRetry registra el fallo y deja el mensaje pendiente hasta nextAttemptAt.
	ScheduleRetry(ctx context.Context, id uuid.UUID, dispatchErr error, nextAttemptAt time.Time) error
}

// OutboxSummary resume el estado del outbox para operación.
type OutboxSummary struct {
	Pending         int        `json:"pending"`
	Retrying        int        `json:"retrying"`
	DeadLettered    int        `json:"deadLettered"`
	Processed       int        `json:"processed"`
	OldestPendingAt *time.Time `json:"oldestPendingAt,omitempty"`
}

// OutboxInspector expone consultas de operación sobre el outbox.
type OutboxInspector interface {
	Summary(ctx context.Context) (OutboxSummary, error)
	ListFailed(ctx context.Context, limit int) ([]OutboxMessage, error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

// ErrorText devuelve el texto que se persiste como LastError ("" si no hubo error).
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
