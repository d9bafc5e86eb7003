package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/production/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
)

type ProductionProjector struct {
	repo  domain.ProductionOrderRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewProductionProjector(repo domain.ProductionOrderRepository, c cache.Cache, ttl time.Duration) *ProductionProjector {
	return &ProductionProjector{repo: repo, cache: c, ttl: ttl}
}

func (p *ProductionProjector) Register(r *relayer.Registry) {
	relayer.On(r, "production.view_projection", func(ctx context.Context, evt events.ProductionCompleted, _ relayer.Envelope) error {
		o, err := p.repo.FindByID(ctx, evt.OrderID)
		if err != nil {
			return fmt.Errorf("load production order %s: %w", evt.OrderID, err)
		}
		return p.cache.Set(ctx, domain.CacheKey(o.ID), domain.NewProductionView(o), p.ttl)
	})
}
