package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_AllKinds(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	samples := []DomainEvent{
		GuaranteeDebited{Meta: NewMeta(at), AccountID: uuid.New(), EntryID: uuid.New(), Amount: 100, Reference: "DUA-1", Balance: 100},
		GuaranteeCredited{Meta: NewMeta(at), AccountID: uuid.New(), EntryID: uuid.New(), Amount: 100, Reference: "DUA-1"},
		GuaranteeEntryVoided{Meta: NewMeta(at), AccountID: uuid.New(), EntryID: uuid.New()},
		ReceiptCreated{Meta: NewMeta(at), ReceiptID: uuid.New(), WarehouseCode: "WH-1", LineCount: 1, TotalQuantity: 5},
		DeclarationCreated{Meta: NewMeta(at), DeclarationID: uuid.New(), LineCount: 2, TotalDuty: 50},
		CustomsCleared{Meta: NewMeta(at), DeclarationID: uuid.New(), MRN: "25ES00000000000017"},
		ProductionCompleted{Meta: NewMeta(at), OrderID: uuid.New(), ProductCode: "P-1", PlannedQty: 10, ProducedQty: 9},
	}
	require.Len(t, samples, len(AllKinds()), "every kind needs a sample")

	for _, evt := range samples {
		t.Run(string(evt.Kind()), func(t *testing.T) {
			payload, err := Encode(evt)
			require.NoError(t, err)
			// Meta viaja en columnas propias, no en el payload
			assert.NotContains(t, string(payload), evt.EventID().String())

			got, err := Decode(string(evt.Kind()), evt.EventID(), evt.OccurredAt(), payload)

			require.NoError(t, err)
			assert.Equal(t, evt, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("guarantee.unknown", uuid.New(), time.Now(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)

	_, err = Decode(string(KindCustomsCleared), uuid.New(), time.Now(), []byte(`{not json`))
	assert.Error(t, err)
}

func TestIntegrationEvent_PartitionKey(t *testing.T) {
	ie := IntegrationEvent{AggregateID: "acc-1"}
	assert.Equal(t, "acc-1", ie.PartitionKey())
}
