package application

import (
	"context"
	"time"

	"github.com/davicafu/customsflow/internal/production/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductionService trabaja con la unidad de trabajo del almacén de órdenes (SQL o MongoDB).
type ProductionService struct {
	repo  domain.ProductionOrderRepository
	uow   sharedDomain.UnitOfWork
	cache cache.Cache
	ttl   time.Duration
	clock sharedDomain.Clock
	log   *zap.Logger
}

func NewProductionService(repo domain.ProductionOrderRepository, uow sharedDomain.UnitOfWork, c cache.Cache, ttl time.Duration, clock sharedDomain.Clock, log *zap.Logger) *ProductionService {
	return &ProductionService{repo: repo, uow: uow, cache: c, ttl: ttl, clock: clock, log: log}
}

func (s *ProductionService) Create(ctx context.Context, productCode string, plannedQty float64) (*domain.ProductionOrder, error) {
	o, err := domain.NewProductionOrder(productCode, plannedQty, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = sharedDomain.RunInWork(ctx, s.uow, func(ctx context.Context, w sharedDomain.Work) error {
		return s.repo.Save(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Orden de producción creada", zap.String("order_id", o.ID.String()), zap.String("product_code", o.ProductCode))
	return o, nil
}

func (s *ProductionService) Complete(ctx context.Context, id uuid.UUID, producedQty float64) (*domain.ProductionOrder, error) {
	var o *domain.ProductionOrder
	err := sharedDomain.RunInWork(ctx, s.uow, func(ctx context.Context, w sharedDomain.Work) error {
		var err error
		o, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := o.Complete(producedQty, s.clock.Now()); err != nil {
			return err
		}
		w.Track(o)
		return s.repo.Save(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Orden de producción completada", zap.String("order_id", id.String()), zap.Float64("produced_qty", producedQty))
	return o, nil
}

func (s *ProductionService) Get(ctx context.Context, id uuid.UUID) (domain.ProductionView, error) {
	if s.cache != nil {
		var view domain.ProductionView
		if ok, _ := s.cache.Get(ctx, domain.CacheKey(id), &view); ok {
			return view, nil
		}
	}

	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.ProductionView{}, err
	}
	view := domain.NewProductionView(o)
	cache.AsyncCacheSet(ctx, s.cache, domain.CacheKey(id), view, s.ttl, s.log)
	return view, nil
}
