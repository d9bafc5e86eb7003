package sqlrepo

import (
	"context"
	"testing"
	"time"

	"github.com/davicafu/customsflow/internal/receipt/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReceiptRepoSQL_SaveInWorkWritesOutbox(t *testing.T) {
	// Arrange
	ctx := context.Background()
	db, err := sqlite.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.InitSQLite(ctx, db))

	clock := sharedDomain.SystemClock{}
	outbox := sqlite.NewOutboxRepoSQLite(db, clock)
	uow := sqldb.NewUnitOfWork(db, outbox, zap.NewNop())
	repo := NewReceiptRepoSQL(db, sqldb.SQLite)

	declID := uuid.New()
	rc, err := domain.NewReceipt("MAD-01", &declID, []domain.Line{{ProductCode: "SKU-1", Quantity: 4}}, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Act
	err = sharedDomain.RunInWork(ctx, uow, func(ctx context.Context, w sharedDomain.Work) error {
		w.Track(rc)
		return repo.Save(ctx, rc)
	})

	// Assert
	require.NoError(t, err)
	loaded, err := repo.FindByID(ctx, rc.ID)
	require.NoError(t, err)
	assert.Equal(t, "MAD-01", loaded.WarehouseCode)
	require.NotNil(t, loaded.DeclarationID)
	assert.Equal(t, declID, *loaded.DeclarationID)
	require.Len(t, loaded.Lines, 1)
	assert.Equal(t, "PCE", loaded.Lines[0].Unit)

	pending, err := outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, string(events.KindReceiptCreated), pending[0].EventType)
	assert.Equal(t, rc.ID.String(), pending[0].AggregateID)
}

func TestReceiptRepoSQL_NotFound(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.InitSQLite(ctx, db))

	_, err = NewReceiptRepoSQL(db, sqldb.SQLite).FindByID(ctx, uuid.New())

	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)
}
