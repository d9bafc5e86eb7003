package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davicafu/customsflow/internal/guarantee/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/davicafu/customsflow/tests/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	service *GuaranteeService
	repo    *mocks.InMemoryAccountRepo
	outbox  *mocks.InMemoryOutbox
	uow     *mocks.InMemoryUnitOfWork
	cache   *mocks.DummyCache
	clock   *mocks.FakeClock
}

func newFixture() fixture {
	clock := mocks.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	outbox := mocks.NewInMemoryOutbox(clock)
	uow := mocks.NewInMemoryUnitOfWork(outbox)
	repo := mocks.NewInMemoryAccountRepo()
	cache := mocks.NewDummyCache()
	return fixture{
		service: NewGuaranteeService(repo, uow, cache, time.Minute, clock, zap.NewNop()),
		repo:    repo,
		outbox:  outbox,
		uow:     uow,
		cache:   cache,
		clock:   clock,
	}
}

func TestDebit_WritesOutboxMessage(t *testing.T) {
	// Arrange
	f := newFixture()
	ctx := context.Background()
	acc, err := f.service.OpenAccount(ctx, "ACME", "EUR", 1000)
	require.NoError(t, err)

	// Act
	entry, err := f.service.Debit(ctx, acc.ID, 300, "DECL-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(300), entry.Amount)

	msgs := f.outbox.All()
	require.Len(t, msgs, 1)
	assert.Equal(t, string(events.KindGuaranteeDebited), msgs[0].EventType)
	assert.Equal(t, acc.ID.String(), msgs[0].AggregateID)
	assert.Nil(t, msgs[0].ProcessedAt)
}

func TestCredit_AfterDebit_BalanceIsDerived(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acc, err := f.service.OpenAccount(ctx, "ACME", "EUR", 0)
	require.NoError(t, err)
	_, err = f.service.Debit(ctx, acc.ID, 300, "DECL-1")
	require.NoError(t, err)

	_, err = f.service.Credit(ctx, acc.ID, 100, "DECL-1")
	require.NoError(t, err)

	loaded, err := f.service.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), loaded.Balance())
	assert.Len(t, f.outbox.All(), 2)
}

func TestDebit_RejectedByLimit_NothingPersisted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acc, err := f.service.OpenAccount(ctx, "ACME", "EUR", 100)
	require.NoError(t, err)

	_, err = f.service.Debit(ctx, acc.ID, 101, "DECL-1")

	assert.ErrorIs(t, err, domain.ErrGuaranteeLimitExceeded)
	assert.Empty(t, f.outbox.All())
	assert.Equal(t, 1, f.uow.Rollbacks)
}

func TestDebit_CommitFailure_NoEventsWritten(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acc, err := f.service.OpenAccount(ctx, "ACME", "EUR", 0)
	require.NoError(t, err)
	f.uow.FailNextCommit(errors.New("disk full"))

	_, err = f.service.Debit(ctx, acc.ID, 50, "X")

	assert.Error(t, err)
	assert.Empty(t, f.outbox.All())
}

func TestRelease_SecondCallIsNoop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acc, err := f.service.OpenAccount(ctx, "ACME", "EUR", 0)
	require.NoError(t, err)
	_, err = f.service.Debit(ctx, acc.ID, 300, "DECL-1")
	require.NoError(t, err)

	released, err := f.service.Release(ctx, acc.ID, "DECL-1")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = f.service.Release(ctx, acc.ID, "DECL-1")
	require.NoError(t, err)
	assert.False(t, released)

	loaded, err := f.service.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.Balance())
	assert.Len(t, f.outbox.All(), 2, "débito y un único abono")
}

func TestVoidEntry_EmitsEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acc, err := f.service.OpenAccount(ctx, "ACME", "EUR", 0)
	require.NoError(t, err)
	entry, err := f.service.Debit(ctx, acc.ID, 40, "X")
	require.NoError(t, err)

	require.NoError(t, f.service.VoidEntry(ctx, acc.ID, entry.ID))

	msgs := f.outbox.All()
	require.Len(t, msgs, 2)
	assert.Equal(t, string(events.KindGuaranteeEntryVoided), msgs[1].EventType)
	assert.ErrorIs(t, f.service.VoidEntry(ctx, acc.ID, uuid.New()), domain.ErrEntryNotFound)
}

func TestGetBalance_CacheHit(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	view := domain.BalanceView{AccountID: id, Holder: "cached", Balance: 42}
	require.NoError(t, f.cache.Set(context.Background(), domain.CacheKey(id), view, 0))

	got, err := f.service.GetBalance(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "cached", got.Holder)
	assert.Equal(t, int64(42), got.Balance)
}

func TestGetBalance_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.GetBalance(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
