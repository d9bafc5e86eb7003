package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
	"github.com/google/uuid"
)

// DeclarationProjector mantiene en caché la vista de cada declaración, leída siempre del repositorio.
type DeclarationProjector struct {
	repo  domain.DeclarationRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewDeclarationProjector(repo domain.DeclarationRepository, c cache.Cache, ttl time.Duration) *DeclarationProjector {
	return &DeclarationProjector{repo: repo, cache: c, ttl: ttl}
}

func (p *DeclarationProjector) Register(r *relayer.Registry) {
	relayer.On(r, "declaration.view_projection", func(ctx context.Context, evt events.DeclarationCreated, _ relayer.Envelope) error {
		return p.Project(ctx, evt.DeclarationID)
	})
	relayer.On(r, "declaration.view_projection", func(ctx context.Context, evt events.CustomsCleared, _ relayer.Envelope) error {
		return p.Project(ctx, evt.DeclarationID)
	})
}

func (p *DeclarationProjector) Project(ctx context.Context, id uuid.UUID) error {
	decl, err := p.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load declaration %s: %w", id, err)
	}
	return p.cache.Set(ctx, domain.CacheKey(id), domain.NewDeclarationView(decl), p.ttl)
}
