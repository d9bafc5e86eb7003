package handlers

import (
	"context"

	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/analytics"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
)

type EventLogger interface {
	LogBatch(ctx context.Context, records []analytics.EventRecord) error
}

// AnalyticsRecorder copia cada evento despachado al almacén analítico.
type AnalyticsRecorder struct {
	sink EventLogger
}

func NewAnalyticsRecorder(sink EventLogger) *AnalyticsRecorder {
	return &AnalyticsRecorder{sink: sink}
}

var _ relayer.Handler = (*AnalyticsRecorder)(nil)

func (r *AnalyticsRecorder) Handle(ctx context.Context, evt events.DomainEvent, env relayer.Envelope) error {
	return r.sink.LogBatch(ctx, []analytics.EventRecord{{
		EventID:       env.MessageID.String(),
		EventType:     string(env.Kind),
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		OccurredAt:    env.OccurredAt,
		Payload:       string(env.Payload),
	}})
}
