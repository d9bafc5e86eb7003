package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/receipt/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
)

type ReceiptProjector struct {
	repo  domain.ReceiptRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewReceiptProjector(repo domain.ReceiptRepository, c cache.Cache, ttl time.Duration) *ReceiptProjector {
	return &ReceiptProjector{repo: repo, cache: c, ttl: ttl}
}

func (p *ReceiptProjector) Register(r *relayer.Registry) {
	relayer.On(r, "receipt.view_projection", func(ctx context.Context, evt events.ReceiptCreated, _ relayer.Envelope) error {
		rc, err := p.repo.FindByID(ctx, evt.ReceiptID)
		if err != nil {
			return fmt.Errorf("load receipt %s: %w", evt.ReceiptID, err)
		}
		return p.cache.Set(ctx, domain.CacheKey(rc.ID), domain.NewReceiptView(rc), p.ttl)
	})
}
