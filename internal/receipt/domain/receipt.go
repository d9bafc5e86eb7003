package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/google/uuid"
)

type Line struct {
	LineNo      int     `json:"lineNo"`
	ProductCode string  `json:"productCode"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
}

// Receipt es la entrada de mercancía en un almacén, opcionalmente ligada a una declaración.
type Receipt struct {
	sharedDomain.EventBuffer

	ID            uuid.UUID
	WarehouseCode string
	DeclarationID *uuid.UUID
	Lines         []Line
	ReceivedAt    time.Time
}

// NewReceipt valida y crea la recepción, emitiendo receipt.created.
func NewReceipt(warehouseCode string, declarationID *uuid.UUID, lines []Line, now time.Time) (*Receipt, error) {
	warehouseCode = strings.ToUpper(strings.TrimSpace(warehouseCode))
	if warehouseCode == "" || len(lines) == 0 {
		return nil, ErrInvalidReceipt
	}

	normalized := make([]Line, len(lines))
	for i, l := range lines {
		l.ProductCode = strings.TrimSpace(l.ProductCode)
		if l.ProductCode == "" || l.Quantity <= 0 {
			return nil, ErrInvalidReceipt
		}
		if l.Unit == "" {
			l.Unit = "PCE"
		}
		l.LineNo = i + 1
		normalized[i] = l
	}

	r := &Receipt{
		ID:            uuid.New(),
		WarehouseCode: warehouseCode,
		DeclarationID: declarationID,
		Lines:         normalized,
		ReceivedAt:    now.UTC(),
	}

	evt := events.ReceiptCreated{
		Meta:          events.NewMeta(now),
		ReceiptID:     r.ID,
		WarehouseCode: r.WarehouseCode,
		LineCount:     len(r.Lines),
		TotalQuantity: r.TotalQuantity(),
	}
	if declarationID != nil {
		evt.DeclarationID = declarationID.String()
	}
	r.Raise(evt)
	return r, nil
}

func (r *Receipt) TotalQuantity() float64 {
	var total float64
	for _, l := range r.Lines {
		total += l.Quantity
	}
	return total
}
