package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	declarationApp "github.com/davicafu/customsflow/internal/declaration/application"
	declDomain "github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/davicafu/customsflow/internal/declaration/domain/validation"
	declarationRepo "github.com/davicafu/customsflow/internal/declaration/infra/outbound/db/sqlrepo"
	"github.com/davicafu/customsflow/internal/declaration/infra/outbound/filesystem"
	declarationProjection "github.com/davicafu/customsflow/internal/declaration/infra/outbound/projection"
	"github.com/davicafu/customsflow/internal/declaration/infra/outbound/referencedata"
	guaranteeApp "github.com/davicafu/customsflow/internal/guarantee/application"
	guaranteeDomain "github.com/davicafu/customsflow/internal/guarantee/domain"
	guaranteeEvents "github.com/davicafu/customsflow/internal/guarantee/infra/inbound/events"
	guaranteeRepo "github.com/davicafu/customsflow/internal/guarantee/infra/outbound/db/sqlrepo"
	guaranteeProjection "github.com/davicafu/customsflow/internal/guarantee/infra/outbound/projection"
	"github.com/davicafu/customsflow/internal/shared/infra/handlers"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/bus"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
	"github.com/davicafu/customsflow/tests/mocks"
)

// drain entrega al handler todo lo publicado hasta ahora en el bus en memoria.
func drain(t *testing.T, ch <-chan bus.Message, handler bus.MessageHandler) int {
	t.Helper()
	n := 0
	for {
		select {
		case msg := <-ch:
			require.NoError(t, handler.HandleMessage(context.Background(), msg.Key, msg.Payload))
			n++
		default:
			return n
		}
	}
}

// TestCustomsPipeline_SQLite recorre el flujo completo sobre SQLite: alta de la declaración con
// disposición de la garantía, despacho del outbox, levante y liberación a través del bus.
func TestCustomsPipeline_SQLite(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	clock := mocks.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	db, err := sqlite.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, sqlite.InitSQLite(ctx, db))

	outbox := sqlite.NewOutboxRepoSQLite(db, clock)
	uow := sqldb.NewUnitOfWork(db, outbox, log)
	memCache := cache.NewInMemoryCache(time.Minute, time.Minute)
	defer memCache.Stop()

	catalog := referencedata.NewSQLCatalog(db, sqldb.SQLite)
	_, err = catalog.Seed(ctx, referencedata.DefaultCodes())
	require.NoError(t, err)

	accounts := guaranteeRepo.NewAccountRepoSQL(db, sqldb.SQLite)
	declarations := declarationRepo.NewDeclarationRepoSQL(db, sqldb.SQLite)
	guarantees := guaranteeApp.NewGuaranteeService(accounts, uow, memCache, time.Minute, clock, log)
	engine := validation.NewEngine(validation.DefaultRules(referencedata.NewCachedCatalog(catalog, memCache, time.Minute, log)), clock, nil, log)
	declService := declarationApp.NewDeclarationService(declarations, engine, guarantees, uow, memCache, time.Minute, clock, log)

	eventBus := bus.NewInMemoryEventBus("customsflow-events")
	sub := eventBus.Subscribe(32)
	release := guaranteeEvents.NewReleaseConsumer(guarantees, log)
	archive, err := filesystem.NewClearanceArchive(t.TempDir())
	require.NoError(t, err)

	registry := relayer.NewRegistry()
	guaranteeProjection.NewBalanceProjector(accounts, memCache, time.Minute, clock).Register(registry)
	declarationProjection.NewDeclarationProjector(declarations, memCache, time.Minute).Register(registry)
	archive.Register(registry)
	registry.RegisterAll("bus_forwarder", handlers.NewBusForwarder(eventBus, log))
	require.NoError(t, registry.Validate())

	worker := relayer.NewOutboxWorker(outbox, registry, clock, relayer.DefaultWorkerConfig("sql"), nil, log)

	// 1. Alta: débito + declaración en la misma transacción
	acc, err := guarantees.OpenAccount(ctx, "ACME Imports", "EUR", 100_000)
	require.NoError(t, err)
	decl, result, err := declService.Create(ctx, declDomain.Draft{
		DeclarantEORI:      "ESB12345678",
		ProcedureCode:      "4000",
		Currency:           "EUR",
		GuaranteeAccountID: acc.ID,
		Lines: []declDomain.Line{{
			TariffCode:    "8517130000",
			Description:   "Smartphones",
			OriginCountry: "CN",
			Quantity:      100,
			NetMassKg:     20,
			GrossMassKg:   25,
			CustomsValue:  1_000_000,
			DutyRate:      2.5,
		}},
	})
	require.NoError(t, err)
	require.True(t, result.IsValid)

	require.NoError(t, worker.ProcessBatch(ctx))
	summary, err := outbox.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pending)
	assert.Equal(t, 2, summary.Processed)

	var balance guaranteeDomain.BalanceView
	ok, err := memCache.Get(ctx, guaranteeDomain.CacheKey(acc.ID), &balance)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(25_000), balance.Balance)

	var view declDomain.DeclarationView
	ok, err = memCache.Get(ctx, declDomain.CacheKey(decl.ID), &view)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, declDomain.StatusRegistered, view.Status)

	// Nada que liberar todavía
	assert.Equal(t, 2, drain(t, sub, release))

	// 2. Levante
	_, err = declService.Clear(ctx, decl.ID, "25ES00000000000017")
	require.NoError(t, err)
	require.NoError(t, worker.ProcessBatch(ctx))

	rec, err := archive.Get(ctx, decl.ID)
	require.NoError(t, err)
	assert.Equal(t, "25ES00000000000017", rec.MRN)
	assert.Equal(t, int64(25_000), rec.TotalDuty)

	// 3. Liberación vía bus, con entrega duplicada
	msgs := make([]bus.Message, 0, 1)
	for len(sub) > 0 {
		msgs = append(msgs, <-sub)
	}
	require.Len(t, msgs, 1)
	for i := 0; i < 2; i++ {
		require.NoError(t, release.HandleMessage(ctx, msgs[0].Key, msgs[0].Payload))
	}

	require.NoError(t, worker.ProcessBatch(ctx))
	ok, err = memCache.Get(ctx, guaranteeDomain.CacheKey(acc.ID), &balance)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), balance.Balance)
	require.NotNil(t, balance.Available)
	assert.Equal(t, int64(100_000), *balance.Available)

	stored, err := accounts.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Entries(), 2)

	summary, err = outbox.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pending)
	assert.Equal(t, 0, summary.DeadLettered)
	assert.Equal(t, 4, summary.Processed)
}
