package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/analytics"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
	"github.com/davicafu/customsflow/tests/mocks"
)

func clearedEnvelope(t *testing.T) (events.CustomsCleared, relayer.Envelope) {
	t.Helper()
	evt := events.CustomsCleared{
		Meta:               events.NewMeta(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		DeclarationID:      uuid.New(),
		MRN:                "25ES00000000000017",
		GuaranteeAccountID: uuid.New(),
		TotalDuty:          25_000,
	}
	payload, err := events.Encode(evt)
	require.NoError(t, err)
	return evt, relayer.Envelope{
		MessageID:     evt.EventID(),
		Kind:          evt.Kind(),
		AggregateType: evt.AggregateType(),
		AggregateID:   evt.AggregateID(),
		OccurredAt:    evt.OccurredAt(),
		Attempt:       1,
		Payload:       payload,
	}
}

func TestBusForwarder_Handle(t *testing.T) {
	// Arrange
	evt, env := clearedEnvelope(t)
	publisher := new(mocks.MockPublisher)
	publisher.On("Publish", context.Background(), events.IntegrationEvent{
		ID:            env.MessageID,
		Type:          "declaration.cleared",
		AggregateType: events.AggregateDeclaration,
		AggregateID:   evt.DeclarationID.String(),
		Timestamp:     env.OccurredAt,
		Data:          env.Payload,
	}).Return(nil).Once()

	// Act
	err := NewBusForwarder(publisher, zap.NewNop()).Handle(context.Background(), evt, env)

	// Assert
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestBusForwarder_PublishError(t *testing.T) {
	evt, env := clearedEnvelope(t)
	broker := errors.New("broker down")
	publisher := new(mocks.MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(broker)

	err := NewBusForwarder(publisher, zap.NewNop()).Handle(context.Background(), evt, env)

	assert.ErrorIs(t, err, broker)
	assert.Contains(t, err.Error(), "declaration.cleared")
}

type fakeSink struct {
	records []analytics.EventRecord
	err     error
}

func (s *fakeSink) LogBatch(ctx context.Context, records []analytics.EventRecord) error {
	s.records = append(s.records, records...)
	return s.err
}

func TestAnalyticsRecorder_Handle(t *testing.T) {
	evt, env := clearedEnvelope(t)
	sink := &fakeSink{}

	require.NoError(t, NewAnalyticsRecorder(sink).Handle(context.Background(), evt, env))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, env.MessageID.String(), rec.EventID)
	assert.Equal(t, "declaration.cleared", rec.EventType)
	assert.Equal(t, evt.DeclarationID.String(), rec.AggregateID)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(rec.Payload), &payload))
	assert.Equal(t, "25ES00000000000017", payload["mrn"])
}
