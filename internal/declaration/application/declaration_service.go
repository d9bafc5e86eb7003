package application

import (
	"context"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/davicafu/customsflow/internal/declaration/domain/validation"
	guaranteeDomain "github.com/davicafu/customsflow/internal/guarantee/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/customsflow/internal/shared/infra/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Validator evalúa las reglas sobre una declaración.
type Validator interface {
	Validate(ctx context.Context, d *domain.Declaration) validation.Result
}

// GuaranteeDebiter dispone la garantía dentro de la unidad de trabajo del alta.
type GuaranteeDebiter interface {
	DebitInWork(ctx context.Context, w sharedDomain.Work, id uuid.UUID, amount int64, reference string) (guaranteeDomain.LedgerEntry, error)
}

type DeclarationService struct {
	repo       domain.DeclarationRepository
	validator  Validator
	guarantees GuaranteeDebiter
	uow        sharedDomain.UnitOfWork
	cache      cache.Cache
	ttl        time.Duration
	clock      sharedDomain.Clock
	log        *zap.Logger
}

func NewDeclarationService(
	repo domain.DeclarationRepository,
	validator Validator,
	guarantees GuaranteeDebiter,
	uow sharedDomain.UnitOfWork,
	c cache.Cache,
	ttl time.Duration,
	clock sharedDomain.Clock,
	log *zap.Logger,
) *DeclarationService {
	return &DeclarationService{
		repo:       repo,
		validator:  validator,
		guarantees: guarantees,
		uow:        uow,
		cache:      c,
		ttl:        ttl,
		clock:      clock,
		log:        log,
	}
}

// ValidateDraft valida sin persistir nada. Las claves ajenas ausentes se sustituyen por placeholders.
func (s *DeclarationService) ValidateDraft(ctx context.Context, draft domain.Draft) validation.Result {
	return s.validator.Validate(ctx, domain.NewValidationProjection(draft, s.clock.Now()))
}

// Create valida y, sólo si el veredicto es favorable, registra la declaración y dispone la garantía
// por el total de derechos en una única unidad de trabajo.
// Si la validación falla devuelve el resultado junto a ErrDeclarationInvalid.
func (s *DeclarationService) Create(ctx context.Context, draft domain.Draft) (*domain.Declaration, validation.Result, error) {
	decl := domain.NewCandidate(draft, s.clock.Now())

	result := s.validator.Validate(ctx, decl)
	if !result.IsValid {
		s.log.Info("Declaración rechazada en validación",
			zap.String("declarant_eori", decl.DeclarantEORI),
			zap.Int("errors", len(result.Errors)),
		)
		return nil, result, domain.ErrDeclarationInvalid
	}

	err := sharedDomain.RunInWork(ctx, s.uow, func(ctx context.Context, w sharedDomain.Work) error {
		// Primero la garantía: si no hay saldo no se registra nada.
		if duty := decl.TotalDuty(); duty > 0 {
			if _, err := s.guarantees.DebitInWork(ctx, w, decl.GuaranteeAccountID, duty, decl.ID.String()); err != nil {
				return fmt.Errorf("reserve guarantee: %w", err)
			}
		}

		decl.Register()
		w.Track(decl)
		return s.repo.Save(ctx, decl)
	})
	if err != nil {
		return nil, result, err
	}

	s.log.Info("Declaración registrada",
		zap.String("declaration_id", decl.ID.String()),
		zap.String("account_id", decl.GuaranteeAccountID.String()),
		zap.Int64("total_duty", decl.TotalDuty()),
	)
	return decl, result, nil
}

// Clear registra el levante. La liberación de la garantía la hace el consumidor de declaration.cleared.
func (s *DeclarationService) Clear(ctx context.Context, id uuid.UUID, mrn string) (*domain.Declaration, error) {
	var decl *domain.Declaration
	err := sharedDomain.RunInWork(ctx, s.uow, func(ctx context.Context, w sharedDomain.Work) error {
		var err error
		decl, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := decl.Clear(mrn, s.clock.Now()); err != nil {
			return err
		}
		w.Track(decl)
		return s.repo.Save(ctx, decl)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Levante registrado", zap.String("declaration_id", id.String()), zap.String("mrn", decl.MRN))
	return decl, nil
}

func (s *DeclarationService) Get(ctx context.Context, id uuid.UUID) (*domain.Declaration, error) {
	return s.repo.FindByID(ctx, id)
}

// GetView devuelve la proyección: primero caché, después repositorio.
func (s *DeclarationService) GetView(ctx context.Context, id uuid.UUID) (domain.DeclarationView, error) {
	if s.cache != nil {
		var view domain.DeclarationView
		if ok, _ := s.cache.Get(ctx, domain.CacheKey(id), &view); ok {
			return view, nil
		}
	}

	var decl *domain.Declaration
	err := utils.Retry(ctx, 3, 100*time.Millisecond, utils.StopOn(domain.ErrDeclarationNotFound), func() error {
		var err error
		decl, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return domain.DeclarationView{}, err
	}

	view := domain.NewDeclarationView(decl)
	cache.AsyncCacheSet(ctx, s.cache, domain.CacheKey(id), view, s.ttl, s.log)
	return view, nil
}
