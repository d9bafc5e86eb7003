package mocks

import (
	"context"
	"sync"

	receiptDomain "github.com/davicafu/customsflow/internal/receipt/domain"
	"github.com/google/uuid"
)

type InMemoryReceiptRepo struct {
	mu       sync.Mutex
	receipts map[uuid.UUID]receiptDomain.Receipt
}

var _ receiptDomain.ReceiptRepository = (*InMemoryReceiptRepo)(nil)

func NewInMemoryReceiptRepo() *InMemoryReceiptRepo {
	return &InMemoryReceiptRepo{receipts: make(map[uuid.UUID]receiptDomain.Receipt)}
}

func (r *InMemoryReceiptRepo) Save(ctx context.Context, rc *receiptDomain.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]receiptDomain.Line, len(rc.Lines))
	copy(lines, rc.Lines)
	r.receipts[rc.ID] = receiptDomain.Receipt{
		ID:            rc.ID,
		WarehouseCode: rc.WarehouseCode,
		DeclarationID: rc.DeclarationID,
		Lines:         lines,
		ReceivedAt:    rc.ReceivedAt,
	}
	return nil
}

func (r *InMemoryReceiptRepo) FindByID(ctx context.Context, id uuid.UUID) (*receiptDomain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.receipts[id]
	if !ok {
		return nil, receiptDomain.ErrReceiptNotFound
	}
	out := rc
	return &out, nil
}
