package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/customsflow/tests/mocks"
)

// fakeAggregate es una fuente de eventos mínima.
type fakeAggregate struct {
	sharedDomain.EventBuffer
}

func completed(at time.Time, code string) events.ProductionCompleted {
	return events.ProductionCompleted{
		Meta:        events.NewMeta(at),
		OrderID:     uuid.New(),
		ProductCode: code,
		PlannedQty:  10,
		ProducedQty: 10,
	}
}

func setupOutbox(t *testing.T) (*sql.DB, *OutboxRepoSQLite, *sqldb.UnitOfWork, *mocks.FakeClock) {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitSQLite(ctx, db))

	clock := mocks.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := NewOutboxRepoSQLite(db, clock)
	return db, repo, sqldb.NewUnitOfWork(db, repo, zap.NewNop()), clock
}

func commit(t *testing.T, uow sharedDomain.UnitOfWork, evts ...events.DomainEvent) *fakeAggregate {
	t.Helper()
	agg := &fakeAggregate{}
	for _, e := range evts {
		agg.Raise(e)
	}
	require.NoError(t, sharedDomain.RunInWork(context.Background(), uow, func(ctx context.Context, w sharedDomain.Work) error {
		w.Track(agg)
		return nil
	}))
	return agg
}

func TestInsertOutboxMessage_RequiresWork(t *testing.T) {
	_, repo, _, clock := setupOutbox(t)
	msg, err := sharedDomain.NewOutboxMessage(completed(clock.Now(), "P-1"))
	require.NoError(t, err)

	err = repo.InsertOutboxMessage(context.Background(), msg)

	assert.ErrorIs(t, err, sharedDomain.ErrNoWorkInContext)
}

func TestFetchPending_Order(t *testing.T) {
	// Arrange
	_, repo, uow, clock := setupOutbox(t)
	t0 := clock.Now()
	// mismo instante: desempate por orden de inserción
	commit(t, uow, completed(t0.Add(time.Second), "B"), completed(t0, "A1"), completed(t0, "A2"))

	// Act
	msgs, err := repo.FetchPending(context.Background(), 10)

	// Assert
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	codes := make([]string, 0, 3)
	for _, m := range msgs {
		evt, err := events.Decode(m.EventType, m.ID, m.OccurredAt, m.Payload)
		require.NoError(t, err)
		codes = append(codes, evt.(events.ProductionCompleted).ProductCode)
	}
	assert.Equal(t, []string{"A1", "A2", "B"}, codes)

	limited, err := repo.FetchPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	_, repo, uow, clock := setupOutbox(t)
	commit(t, uow, completed(clock.Now(), "A"), completed(clock.Now(), "B"))
	msgs, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	ok, failing := msgs[0], msgs[1]

	t.Run("procesado una sola vez", func(t *testing.T) {
		require.NoError(t, repo.MarkProcessed(ctx, ok.ID, nil))
		assert.ErrorIs(t, repo.MarkProcessed(ctx, ok.ID, nil), sharedDomain.ErrOutboxMessageNotFound)
	})

	t.Run("reintento programado", func(t *testing.T) {
		require.NoError(t, repo.ScheduleRetry(ctx, failing.ID, errors.New("timeout"), clock.Now().Add(time.Minute)))

		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		clock.Advance(time.Minute)
		pending, err = repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 1, pending[0].Attempts)
		assert.Equal(t, "timeout", pending[0].LastError)

		s, err := repo.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, s.Pending)
		assert.Equal(t, 1, s.Retrying)
		assert.Equal(t, 1, s.Processed)
	})

	t.Run("dead-letter y requeue", func(t *testing.T) {
		assert.ErrorIs(t, repo.Requeue(ctx, failing.ID), sharedDomain.ErrOutboxMessageNotFailed)
		assert.ErrorIs(t, repo.Requeue(ctx, uuid.New()), sharedDomain.ErrOutboxMessageNotFound)

		require.NoError(t, repo.MarkProcessed(ctx, failing.ID, errors.New("poison")))
		failed, err := repo.ListFailed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.True(t, failed[0].IsDeadLettered())
		assert.Equal(t, 2, failed[0].Attempts)

		require.NoError(t, repo.Requeue(ctx, failing.ID))
		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 0, pending[0].Attempts)
		assert.Equal(t, "poison", pending[0].LastError)
	})
}

func TestUnitOfWork_SQLite(t *testing.T) {
	ctx := context.Background()

	t.Run("rollback descarta el outbox y conserva los eventos", func(t *testing.T) {
		_, repo, uow, clock := setupOutbox(t)
		agg := &fakeAggregate{}
		agg.Raise(completed(clock.Now(), "A"))
		boom := errors.New("boom")

		err := sharedDomain.RunInWork(ctx, uow, func(ctx context.Context, w sharedDomain.Work) error {
			w.Track(agg)
			return boom
		})

		assert.ErrorIs(t, err, boom)
		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
		assert.Len(t, agg.PendingEvents(), 1)
	})

	t.Run("commit vacía los buffers", func(t *testing.T) {
		_, repo, uow, clock := setupOutbox(t)
		agg := commit(t, uow, completed(clock.Now(), "A"))

		assert.Empty(t, agg.PendingEvents())
		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("commit dos veces", func(t *testing.T) {
		_, _, uow, _ := setupOutbox(t)
		w, err := uow.BeginWork(ctx)
		require.NoError(t, err)
		require.NoError(t, w.Commit())
		assert.ErrorIs(t, w.Commit(), sharedDomain.ErrWorkFinished)
		assert.NoError(t, w.Rollback())
	})

	t.Run("la transacción viaja en el contexto", func(t *testing.T) {
		_, _, uow, _ := setupOutbox(t)
		w, err := uow.BeginWork(ctx)
		require.NoError(t, err)
		defer w.Rollback()

		_, ok := sqldb.From(w.Context())
		assert.True(t, ok)
		_, ok = sqldb.From(ctx)
		assert.False(t, ok)
	})
}
