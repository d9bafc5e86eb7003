package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Encode serializa el payload específico de la variante (sin Meta).
func Encode(evt DomainEvent) (json.RawMessage, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.Kind(), err)
	}
	return data, nil
}

// Decode reconstruye la variante correspondiente al tipo almacenado en el outbox.
func Decode(eventType string, id uuid.UUID, occurredAt time.Time, payload []byte) (DomainEvent, error) {
	meta := Meta{ID: id, At: occurredAt.UTC()}

	switch Kind(eventType) {
	case KindGuaranteeDebited:
		return decode[GuaranteeDebited](payload, meta)
	case KindGuaranteeCredited:
		return decode[GuaranteeCredited](payload, meta)
	case KindGuaranteeEntryVoided:
		return decode[GuaranteeEntryVoided](payload, meta)
	case KindReceiptCreated:
		return decode[ReceiptCreated](payload, meta)
	case KindDeclarationCreated:
		return decode[DeclarationCreated](payload, meta)
	case KindCustomsCleared:
		return decode[CustomsCleared](payload, meta)
	case KindProductionCompleted:
		return decode[ProductionCompleted](payload, meta)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

func decode[T DomainEvent, P interface {
	*T
	setMeta(Meta)
}](payload []byte, meta Meta) (DomainEvent, error) {
	var evt T
	if err := json.Unmarshal(payload, P(&evt)); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", evt.Kind(), err)
	}
	P(&evt).setMeta(meta)
	return evt, nil
}
