package projection

import (
	"context"
	"testing"
	"time"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
	"github.com/davicafu/customsflow/tests/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDeclarationProjector_OverwritesViewOnEachEvent(t *testing.T) {
	// Arrange
	repo := mocks.NewInMemoryDeclarationRepo()
	c := mocks.NewDummyCache()
	registry := relayer.NewRegistry()
	NewDeclarationProjector(repo, c, time.Minute).Register(registry)
	ctx := context.Background()

	decl := domain.NewCandidate(domain.Draft{
		DeclarantEORI:      "ESB12345678",
		ProcedureCode:      "4000",
		Currency:           "EUR",
		GuaranteeAccountID: uuid.New(),
		Lines:              []domain.Line{{TariffCode: "61091000", OriginCountry: "VN", Quantity: 1, NetMassKg: 1, GrossMassKg: 1, CustomsValue: 10_000, DutyRate: 12}},
	}, now)
	decl.Register()
	require.NoError(t, repo.Save(ctx, decl))
	created, err := sharedDomain.NewOutboxMessage(decl.PendingEvents()[0])
	require.NoError(t, err)
	decl.ClearEvents()

	// Act 1: alta
	require.NoError(t, registry.Dispatch(ctx, created))

	var view domain.DeclarationView
	ok, err := c.Get(ctx, domain.CacheKey(decl.ID), &view)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusRegistered, view.Status)
	assert.Equal(t, int64(1200), view.TotalDuty)

	// Act 2: levante
	require.NoError(t, decl.Clear("25ES00000000000017", now.Add(time.Hour)))
	require.NoError(t, repo.Save(ctx, decl))
	cleared, err := sharedDomain.NewOutboxMessage(decl.PendingEvents()[0])
	require.NoError(t, err)
	require.NoError(t, registry.Dispatch(ctx, cleared))

	// Assert: una entrega repetida del alta no retrocede la vista
	require.NoError(t, registry.Dispatch(ctx, created))
	ok, err = c.Get(ctx, domain.CacheKey(decl.ID), &view)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCleared, view.Status)
	assert.Equal(t, "25ES00000000000017", view.MRN)
	assert.Equal(t, 1, c.Len())
}

func TestDeclarationProjector_MissingDeclarationFails(t *testing.T) {
	p := NewDeclarationProjector(mocks.NewInMemoryDeclarationRepo(), mocks.NewDummyCache(), time.Minute)

	err := p.Project(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrDeclarationNotFound)
}
