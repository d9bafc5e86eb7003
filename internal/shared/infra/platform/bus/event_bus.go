package bus

import (
	"context"
	"errors"
)

// ErrUnprocessable marca un mensaje que nunca podrá procesarse (payload corrupto, agregado
// inexistente). El consumidor lo descarta en lugar de reintentarlo.
var ErrUnprocessable = errors.New("unprocessable message")

type Keyer interface {
	PartitionKey() string
}

// La semántica de topic/nombre y formato del payload la deciden los adapters.
type EventBus interface {
	Publish(ctx context.Context, event interface{}) error
}

// MessageHandler es lo que implementa cualquier consumidor de mensajes del bus.
// Entrega al menos una vez: un error se reintenta salvo que envuelva ErrUnprocessable,
// así que el handler debe ser idempotente.
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte) error
}
