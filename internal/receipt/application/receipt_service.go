package application

import (
	"context"
	"time"

	"github.com/davicafu/customsflow/internal/receipt/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReceiptService struct {
	repo  domain.ReceiptRepository
	uow   sharedDomain.UnitOfWork
	cache cache.Cache
	ttl   time.Duration
	clock sharedDomain.Clock
	log   *zap.Logger
}

func NewReceiptService(repo domain.ReceiptRepository, uow sharedDomain.UnitOfWork, c cache.Cache, ttl time.Duration, clock sharedDomain.Clock, log *zap.Logger) *ReceiptService {
	return &ReceiptService{repo: repo, uow: uow, cache: c, ttl: ttl, clock: clock, log: log}
}

func (s *ReceiptService) Create(ctx context.Context, warehouseCode string, declarationID *uuid.UUID, lines []domain.Line) (*domain.Receipt, error) {
	r, err := domain.NewReceipt(warehouseCode, declarationID, lines, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = sharedDomain.RunInWork(ctx, s.uow, func(ctx context.Context, w sharedDomain.Work) error {
		w.Track(r)
		return s.repo.Save(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Recepción registrada", zap.String("receipt_id", r.ID.String()), zap.String("warehouse", r.WarehouseCode))
	return r, nil
}

// Get devuelve la vista de la recepción, desde caché si está.
func (s *ReceiptService) Get(ctx context.Context, id uuid.UUID) (domain.ReceiptView, error) {
	if s.cache != nil {
		var view domain.ReceiptView
		if ok, _ := s.cache.Get(ctx, domain.CacheKey(id), &view); ok {
			return view, nil
		}
	}

	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.ReceiptView{}, err
	}
	view := domain.NewReceiptView(r)
	cache.AsyncCacheSet(ctx, s.cache, domain.CacheKey(id), view, s.ttl, s.log)
	return view, nil
}
