package domain

import "github.com/davicafu/customsflow/internal/shared/domain/events"

// EventSource es cualquier agregado que acumula eventos durante una operación.
type EventSource interface {
	PendingEvents() []events.DomainEvent
	ClearEvents()
}

// EventBuffer se embebe en los agregados. Raise sólo añade; el vaciado lo hace
// la unidad de trabajo cuando el commit ha tenido éxito.
type EventBuffer struct {
	pending []events.DomainEvent
}

func (b *EventBuffer) Raise(evt events.DomainEvent) {
	b.pending = append(b.pending, evt)
}

func (b *EventBuffer) PendingEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(b.pending))
	copy(out, b.pending)
	return out
}

func (b *EventBuffer) ClearEvents() {
	b.pending = nil
}
