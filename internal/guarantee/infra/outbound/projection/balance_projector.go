package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/guarantee/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
	"github.com/google/uuid"
)

// BalanceProjector mantiene en caché la vista de saldo de cada cuenta.
// Siempre recalcula desde el libro, así que repetir o desordenar eventos no altera el resultado.
type BalanceProjector struct {
	repo  domain.AccountRepository
	cache cache.Cache
	ttl   time.Duration
	clock sharedDomain.Clock
}

func NewBalanceProjector(repo domain.AccountRepository, c cache.Cache, ttl time.Duration, clock sharedDomain.Clock) *BalanceProjector {
	return &BalanceProjector{repo: repo, cache: c, ttl: ttl, clock: clock}
}

func (p *BalanceProjector) Register(r *relayer.Registry) {
	relayer.On(r, "guarantee.balance_projection", func(ctx context.Context, evt events.GuaranteeDebited, _ relayer.Envelope) error {
		return p.Project(ctx, evt.AccountID)
	})
	relayer.On(r, "guarantee.balance_projection", func(ctx context.Context, evt events.GuaranteeCredited, _ relayer.Envelope) error {
		return p.Project(ctx, evt.AccountID)
	})
	relayer.On(r, "guarantee.balance_projection", func(ctx context.Context, evt events.GuaranteeEntryVoided, _ relayer.Envelope) error {
		return p.Project(ctx, evt.AccountID)
	})
}

func (p *BalanceProjector) Project(ctx context.Context, accountID uuid.UUID) error {
	acc, err := p.repo.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", accountID, err)
	}
	return p.cache.Set(ctx, domain.CacheKey(accountID), domain.NewBalanceView(acc, p.clock.Now()), p.ttl)
}
