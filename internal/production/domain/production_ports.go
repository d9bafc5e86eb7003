package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound    = errors.New("production order not found")
	ErrInvalidOrder     = errors.New("invalid production order")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrAlreadyCompleted = errors.New("production order already completed")
)

type ProductionOrderRepository interface {
	// Save inserta o actualiza la orden.
	Save(ctx context.Context, o *ProductionOrder) error
	// Debe devolver ErrOrderNotFound si no existe.
	FindByID(ctx context.Context, id uuid.UUID) (*ProductionOrder, error)
}

type ProductionView struct {
	ID          uuid.UUID  `json:"id"`
	ProductCode string     `json:"productCode"`
	PlannedQty  float64    `json:"plannedQty"`
	ProducedQty float64    `json:"producedQty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func NewProductionView(o *ProductionOrder) ProductionView {
	return ProductionView{
		ID:          o.ID,
		ProductCode: o.ProductCode,
		PlannedQty:  o.PlannedQty,
		ProducedQty: o.ProducedQty,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		CompletedAt: o.CompletedAt,
	}
}

func CacheKey(id uuid.UUID) string {
	return "production:view:" + id.String()
}
