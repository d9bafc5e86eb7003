package application

import (
	"context"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/guarantee/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/customsflow/internal/shared/infra/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GuaranteeService define los casos de uso de las garantías aduaneras.
type GuaranteeService struct {
	repo  domain.AccountRepository
	uow   sharedDomain.UnitOfWork
	cache cache.Cache
	ttl   time.Duration
	clock sharedDomain.Clock
	log   *zap.Logger
}

func NewGuaranteeService(
	repo domain.AccountRepository,
	uow sharedDomain.UnitOfWork,
	c cache.Cache,
	ttl time.Duration,
	clock sharedDomain.Clock,
	log *zap.Logger,
) *GuaranteeService {
	return &GuaranteeService{
		repo:  repo,
		uow:   uow,
		cache: c,
		ttl:   ttl,
		clock: clock,
		log:   log,
	}
}

func (s *GuaranteeService) OpenAccount(ctx context.Context, holder, currency string, creditLimit int64) (*domain.Account, error) {
	acc, err := domain.NewAccount(holder, currency, creditLimit, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = sharedDomain.RunInWork(ctx, s.uow, func(ctx context.Context, w sharedDomain.Work) error {
		w.Track(acc)
		return s.repo.Save(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Cuenta de garantía abierta", zap.String("account_id", acc.ID.String()), zap.String("holder", acc.Holder))
	return acc, nil
}

// Debit dispone amount de la garantía en su propia unidad de trabajo.
func (s *GuaranteeService) Debit(ctx context.Context, id uuid.UUID, amount int64, reference string) (domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := sharedDomain.RunInWork(ctx, s.uow, func(ctx context.Context, w sharedDomain.Work) error {
		var err error
		entry, err = s.DebitInWork(ctx, w, id, amount, reference)
		return err
	})
	return entry, err
}

// DebitInWork dispone amount dentro de una unidad de trabajo ajena (p. ej. el alta de una declaración).
// ctx debe ser el de la unidad de trabajo.
func (s *GuaranteeService) DebitInWork(ctx context.Context, w sharedDomain.Work, id uuid.UUID, amount int64, reference string) (domain.LedgerEntry, error) {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	entry, err := acc.Debit(amount, reference, s.clock.Now())
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("debit account %s: %w", id, err)
	}

	w.Track(acc)
	if err := s.repo.Save(ctx, acc); err != nil {
		return domain.LedgerEntry{}, err
	}
	return entry, nil
}

func (s *GuaranteeService) Credit(ctx context.Context, id uuid.UUID, amount int64, reference string) (domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := s.mutate(ctx, id, func(acc *domain.Account) error {
		var err error
		entry, err = acc.Credit(amount, reference, s.clock.Now())
		return err
	})
	return entry, err
}

// Release abona todo lo pendiente de reference. Devuelve false si no quedaba nada (entrega repetida).
func (s *GuaranteeService) Release(ctx context.Context, id uuid.UUID, reference string) (bool, error) {
	var released bool
	err := s.mutate(ctx, id, func(acc *domain.Account) error {
		var err error
		_, released, err = acc.Release(reference, s.clock.Now())
		return err
	})
	return released, err
}

func (s *GuaranteeService) VoidEntry(ctx context.Context, id, entryID uuid.UUID) error {
	return s.mutate(ctx, id, func(acc *domain.Account) error {
		return acc.VoidEntry(entryID, s.clock.Now())
	})
}

func (s *GuaranteeService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.repo.FindByID(ctx, id)
}

// GetBalance devuelve la proyección de la cuenta: primero caché, después repositorio.
func (s *GuaranteeService) GetBalance(ctx context.Context, id uuid.UUID) (domain.BalanceView, error) {
	if s.cache != nil {
		var view domain.BalanceView
		if ok, _ := s.cache.Get(ctx, domain.CacheKey(id), &view); ok {
			return view, nil
		}
	}

	var acc *domain.Account
	err := utils.Retry(ctx, 3, 100*time.Millisecond, utils.StopOn(domain.ErrAccountNotFound), func() error {
		var err error
		acc, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return domain.BalanceView{}, err
	}

	view := domain.NewBalanceView(acc, s.clock.Now())
	cache.AsyncCacheSet(ctx, s.cache, domain.CacheKey(id), view, s.ttl, s.log)
	return view, nil
}

func (s *GuaranteeService) mutate(ctx context.Context, id uuid.UUID, fn func(acc *domain.Account) error) error {
	return sharedDomain.RunInWork(ctx, s.uow, func(ctx context.Context, w sharedDomain.Work) error {
		acc, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(acc); err != nil {
			return err
		}
		w.Track(acc)
		return s.repo.Save(ctx, acc)
	})
}
