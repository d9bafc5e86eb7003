package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/google/uuid"
)

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusCompleted Status = "completed"
)

// ProductionOrder es una orden de fabricación sobre mercancía en depósito.
type ProductionOrder struct {
	sharedDomain.EventBuffer

	ID          uuid.UUID
	ProductCode string
	PlannedQty  float64
	ProducedQty float64
	Status      Status
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func NewProductionOrder(productCode string, plannedQty float64, now time.Time) (*ProductionOrder, error) {
	productCode = strings.TrimSpace(productCode)
	if productCode == "" {
		return nil, ErrInvalidOrder
	}
	if plannedQty <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &ProductionOrder{
		ID:          uuid.New(),
		ProductCode: productCode,
		PlannedQty:  plannedQty,
		Status:      StatusPlanned,
		CreatedAt:   now.UTC(),
	}, nil
}

// Complete cierra la orden con la cantidad fabricada. Una orden sólo se completa una vez.
func (o *ProductionOrder) Complete(producedQty float64, now time.Time) error {
	if o.Status == StatusCompleted {
		return ErrAlreadyCompleted
	}
	if producedQty <= 0 {
		return ErrInvalidQuantity
	}

	at := now.UTC()
	o.ProducedQty = producedQty
	o.Status = StatusCompleted
	o.CompletedAt = &at

	o.Raise(events.ProductionCompleted{
		Meta:        events.NewMeta(now),
		OrderID:     o.ID,
		ProductCode: o.ProductCode,
		PlannedQty:  o.PlannedQty,
		ProducedQty: o.ProducedQty,
	})
	return nil
}
