package handlers

import (
	"context"
	"fmt"

	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/bus"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
	"go.uber.org/zap"
)

// BusForwarder publica cada evento como IntegrationEvent para otros bounded contexts.
// El ID del sobre es el del mensaje de outbox: los consumidores deduplican por él.
type BusForwarder struct {
	bus bus.EventBus
	log *zap.Logger
}

func NewBusForwarder(b bus.EventBus, log *zap.Logger) *BusForwarder {
	return &BusForwarder{bus: b, log: log}
}

var _ relayer.Handler = (*BusForwarder)(nil)

func (f *BusForwarder) Handle(ctx context.Context, evt events.DomainEvent, env relayer.Envelope) error {
	ie := events.IntegrationEvent{
		ID:            env.MessageID,
		Type:          string(env.Kind),
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		Timestamp:     env.OccurredAt,
		Data:          env.Payload,
	}
	if err := f.bus.Publish(ctx, ie); err != nil {
		return fmt.Errorf("publish %s: %w", env.Kind, err)
	}
	f.log.Debug("Evento reenviado al bus", zap.String("event_id", env.MessageID.String()), zap.String("event_type", string(env.Kind)))
	return nil
}
