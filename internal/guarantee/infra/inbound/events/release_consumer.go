package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/customsflow/internal/guarantee/domain"
	sharedEvents "github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/bus"
	sharedUtils "github.com/davicafu/customsflow/internal/shared/infra/utils"
	"github.com/google/uuid"
)

type GuaranteeReleaser interface {
	Release(ctx context.Context, id uuid.UUID, reference string) (bool, error)
}

// ReleaseConsumer libera la garantía de una declaración cuando llega su despacho.
// Corre en una unidad de trabajo nueva, fuera de la transacción que emitió el evento.
// Los fallos transitorios se devuelven tal cual para que el bus reintente; un sobre
// corrupto o una cuenta inexistente se marcan con bus.ErrUnprocessable.
type ReleaseConsumer struct {
	service GuaranteeReleaser
	timeout time.Duration
	log     *zap.Logger
}

var _ bus.MessageHandler = (*ReleaseConsumer)(nil)

func NewReleaseConsumer(service GuaranteeReleaser, log *zap.Logger) *ReleaseConsumer {
	return &ReleaseConsumer{service: service, timeout: 5 * time.Second, log: log}
}

func (c *ReleaseConsumer) HandleMessage(ctx context.Context, key string, payload []byte) error {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		return fmt.Errorf("%w: decode integration event: %w", bus.ErrUnprocessable, err)
	}

	switch sharedEvents.Kind(base.Type) {
	case sharedEvents.KindCustomsCleared:
		err := sharedUtils.UnmarshalAndHandle(base.Data, func(evt sharedEvents.CustomsCleared) error {
			ctxRelease, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			// Idempotente: una entrega repetida no encuentra nada pendiente.
			released, err := c.service.Release(ctxRelease, evt.GuaranteeAccountID, evt.DeclarationID.String())
			if errors.Is(err, domain.ErrAccountNotFound) {
				return fmt.Errorf("%w: release guarantee for declaration %s: %w", bus.ErrUnprocessable, evt.DeclarationID, err)
			}
			if err != nil {
				return fmt.Errorf("release guarantee for declaration %s: %w", evt.DeclarationID, err)
			}

			c.log.Info("Garantía liberada por despacho",
				zap.String("event_id", base.ID.String()),
				zap.String("account_id", evt.GuaranteeAccountID.String()),
				zap.String("declaration_id", evt.DeclarationID.String()),
				zap.Bool("released", released),
			)
			return nil
		})
		if errors.Is(err, sharedUtils.ErrDecode) {
			return fmt.Errorf("%w: %w", bus.ErrUnprocessable, err)
		}
		return err
	default:
		// El topic lleva todos los eventos; sólo interesa el despacho.
		return nil
	}
}
