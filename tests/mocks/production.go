package mocks

import (
	"context"
	"sync"

	productionDomain "github.com/davicafu/customsflow/internal/production/domain"
	"github.com/google/uuid"
)

type InMemoryProductionRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]productionDomain.ProductionOrder
}

var _ productionDomain.ProductionOrderRepository = (*InMemoryProductionRepo)(nil)

func NewInMemoryProductionRepo() *InMemoryProductionRepo {
	return &InMemoryProductionRepo{orders: make(map[uuid.UUID]productionDomain.ProductionOrder)}
}

func (r *InMemoryProductionRepo) Save(ctx context.Context, o *productionDomain.ProductionOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = productionDomain.ProductionOrder{
		ID:          o.ID,
		ProductCode: o.ProductCode,
		PlannedQty:  o.PlannedQty,
		ProducedQty: o.ProducedQty,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		CompletedAt: o.CompletedAt,
	}
	return nil
}

func (r *InMemoryProductionRepo) FindByID(ctx context.Context, id uuid.UUID) (*productionDomain.ProductionOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, productionDomain.ErrOrderNotFound
	}
	out := productionDomain.ProductionOrder{
		ID:          o.ID,
		ProductCode: o.ProductCode,
		PlannedQty:  o.PlannedQty,
		ProducedQty: o.ProducedQty,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		CompletedAt: o.CompletedAt,
	}
	return &out, nil
}
