package sqlrepo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.InitSQLite(ctx, db))
	t.Cleanup(func() { db.Close() })
	return db
}

func newDeclaration() *domain.Declaration {
	return domain.NewCandidate(domain.Draft{
		DeclarantEORI:      "ESB12345678",
		ProcedureCode:      "4000",
		Currency:           "EUR",
		GuaranteeAccountID: uuid.New(),
		Lines: []domain.Line{
			{TariffCode: "8517130000", Description: "Phones", OriginCountry: "CN", Quantity: 10, NetMassKg: 2, GrossMassKg: 3, CustomsValue: 100_000, DutyRate: 2.5},
			{TariffCode: "61091000", Description: "T-shirts", OriginCountry: "VN", Quantity: 500, NetMassKg: 50, GrossMassKg: 55, CustomsValue: 250_000, DutyRate: 12},
		},
	}, now)
}

func TestDeclarationRepoSQL_SaveAndFind(t *testing.T) {
	// Arrange
	repo := NewDeclarationRepoSQL(setupDB(t), sqldb.SQLite)
	ctx := context.Background()
	d := newDeclaration()

	// Act
	require.NoError(t, repo.Save(ctx, d))
	loaded, err := repo.FindByID(ctx, d.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, d.DeclarantEORI, loaded.DeclarantEORI)
	assert.Equal(t, d.GuaranteeAccountID, loaded.GuaranteeAccountID)
	assert.Equal(t, domain.StatusRegistered, loaded.Status)
	assert.Empty(t, loaded.MRN)
	assert.Nil(t, loaded.ClearedAt)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, 1, loaded.Lines[0].LineNo)
	assert.Equal(t, "61091000", loaded.Lines[1].TariffCode)
	assert.Equal(t, d.TotalDuty(), loaded.TotalDuty())
	assert.True(t, loaded.CreatedAt.Equal(now))
}

func TestDeclarationRepoSQL_SaveUpdatesClearance(t *testing.T) {
	repo := NewDeclarationRepoSQL(setupDB(t), sqldb.SQLite)
	ctx := context.Background()
	d := newDeclaration()
	require.NoError(t, repo.Save(ctx, d))

	require.NoError(t, d.Clear("25ES00000000000017", now.Add(time.Hour)))
	require.NoError(t, repo.Save(ctx, d))

	loaded, err := repo.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCleared, loaded.Status)
	assert.Equal(t, "25ES00000000000017", loaded.MRN)
	require.NotNil(t, loaded.ClearedAt)
	assert.True(t, loaded.ClearedAt.Equal(now.Add(time.Hour)))
	assert.Len(t, loaded.Lines, 2, "las partidas no se duplican al actualizar")
}

func TestDeclarationRepoSQL_NotFound(t *testing.T) {
	repo := NewDeclarationRepoSQL(setupDB(t), sqldb.SQLite)

	_, err := repo.FindByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrDeclarationNotFound)
}

func TestDeclarationRepoSQL_RollbackDiscardsDeclarationAndEvents(t *testing.T) {
	// Arrange
	db := setupDB(t)
	repo := NewDeclarationRepoSQL(db, sqldb.SQLite)
	outbox := sqlite.NewOutboxRepoSQLite(db, sharedDomain.SystemClock{})
	uow := sqldb.NewUnitOfWork(db, outbox, zap.NewNop())
	d := newDeclaration()

	// Act
	err := sharedDomain.RunInWork(context.Background(), uow, func(ctx context.Context, w sharedDomain.Work) error {
		d.Register()
		w.Track(d)
		if err := repo.Save(ctx, d); err != nil {
			return err
		}
		return assert.AnError
	})

	// Assert
	require.ErrorIs(t, err, assert.AnError)
	_, err = repo.FindByID(context.Background(), d.ID)
	assert.ErrorIs(t, err, domain.ErrDeclarationNotFound)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n))
	assert.Zero(t, n)
	assert.Len(t, d.PendingEvents(), 1, "los eventos siguen pendientes tras un rollback")
}
