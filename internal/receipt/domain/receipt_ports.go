package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrInvalidReceipt  = errors.New("invalid receipt: warehouse and at least one positive line are required")
)

type ReceiptRepository interface {
	Save(ctx context.Context, r *Receipt) error
	// Debe devolver ErrReceiptNotFound si no existe.
	FindByID(ctx context.Context, id uuid.UUID) (*Receipt, error)
}

type ReceiptView struct {
	ID            uuid.UUID  `json:"id"`
	WarehouseCode string     `json:"warehouseCode"`
	DeclarationID *uuid.UUID `json:"declarationId,omitempty"`
	Lines         []Line     `json:"lines"`
	TotalQuantity float64    `json:"totalQuantity"`
	ReceivedAt    time.Time  `json:"receivedAt"`
}

func NewReceiptView(r *Receipt) ReceiptView {
	return ReceiptView{
		ID:            r.ID,
		WarehouseCode: r.WarehouseCode,
		DeclarationID: r.DeclarationID,
		Lines:         r.Lines,
		TotalQuantity: r.TotalQuantity(),
		ReceivedAt:    r.ReceivedAt,
	}
}

func CacheKey(id uuid.UUID) string {
	return "receipt:view:" + id.String()
}
