package bus

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Redelivery es la espera entre reintentos de un mensaje fallido: Base, doblando
// hasta Max. Un mensaje se reintenta hasta que se procesa o el consumidor se detiene.
type Redelivery struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultRedelivery() Redelivery {
	return Redelivery{Base: 500 * time.Millisecond, Max: 30 * time.Second}
}

func (r Redelivery) delay(attempt int) time.Duration {
	d := r.Base
	for i := 1; i < attempt && d < r.Max; i++ {
		d *= 2
	}
	if d > r.Max {
		return r.Max
	}
	return d
}

// deliver entrega el mensaje hasta que el handler lo acepta o lo declara imposible.
// Sólo devuelve error si ctx se cancela antes; en ese caso el mensaje no se confirma.
func deliver(ctx context.Context, h MessageHandler, r Redelivery, log *zap.Logger, key string, payload []byte) error {
	for attempt := 1; ; attempt++ {
		err := h.HandleMessage(ctx, key, payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnprocessable) {
			log.Error("🗑️ Mensaje descartado: no se puede procesar", zap.String("key", key), zap.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := r.delay(attempt)
		log.Warn("Mensaje no procesado, se reintentará",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
