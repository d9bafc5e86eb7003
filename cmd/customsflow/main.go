package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davicafu/customsflow/internal/config"
	declarationApp "github.com/davicafu/customsflow/internal/declaration/application"
	"github.com/davicafu/customsflow/internal/declaration/domain/validation"
	declarationHttp "github.com/davicafu/customsflow/internal/declaration/infra/inbound/http"
	declarationRepo "github.com/davicafu/customsflow/internal/declaration/infra/outbound/db/sqlrepo"
	"github.com/davicafu/customsflow/internal/declaration/infra/outbound/filesystem"
	declarationProjection "github.com/davicafu/customsflow/internal/declaration/infra/outbound/projection"
	"github.com/davicafu/customsflow/internal/declaration/infra/outbound/referencedata"
	guaranteeApp "github.com/davicafu/customsflow/internal/guarantee/application"
	guaranteeEvents "github.com/davicafu/customsflow/internal/guarantee/infra/inbound/events"
	guaranteeHttp "github.com/davicafu/customsflow/internal/guarantee/infra/inbound/http"
	guaranteeRepo "github.com/davicafu/customsflow/internal/guarantee/infra/outbound/db/sqlrepo"
	guaranteeProjection "github.com/davicafu/customsflow/internal/guarantee/infra/outbound/projection"
	productionApp "github.com/davicafu/customsflow/internal/production/application"
	productionDomain "github.com/davicafu/customsflow/internal/production/domain"
	productionHttp "github.com/davicafu/customsflow/internal/production/infra/inbound/http"
	productionMongo "github.com/davicafu/customsflow/internal/production/infra/outbound/db/mongodb"
	productionRepo "github.com/davicafu/customsflow/internal/production/infra/outbound/db/sqlrepo"
	productionProjection "github.com/davicafu/customsflow/internal/production/infra/outbound/projection"
	receiptApp "github.com/davicafu/customsflow/internal/receipt/application"
	receiptHttp "github.com/davicafu/customsflow/internal/receipt/infra/inbound/http"
	receiptRepo "github.com/davicafu/customsflow/internal/receipt/infra/outbound/db/sqlrepo"
	receiptProjection "github.com/davicafu/customsflow/internal/receipt/infra/outbound/projection"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/handlers"
	opsHttp "github.com/davicafu/customsflow/internal/shared/infra/inbound/http"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/analytics"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/bus"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	sharedMongo "github.com/davicafu/customsflow/internal/shared/infra/platform/db/mongodb"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/postgres"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/metrics"
	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
	"github.com/davicafu/customsflow/pkg/logger"
	"github.com/davicafu/customsflow/pkg/telemetry"
)

// outboxRepo es lo que main necesita de cada almacén de outbox: el worker lo drena
// y los endpoints de operación lo inspeccionan.
type outboxRepo interface {
	sharedDomain.OutboxStore
	sharedDomain.OutboxInspector
}

// ---------------- Main ----------------
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel) // inicializa zap
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "customsflow", cfg.OTelEndpoint)
	if err != nil {
		log.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("Error al cerrar el tracing", zap.Error(err))
		}
	}()

	clock := sharedDomain.SystemClock{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ---------------- DB ----------------
	db, dialect, sqlOutbox, err := openSQL(ctx, cfg, clock)
	if err != nil {
		log.Fatal("failed to open database", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer db.Close()
	sqlUoW := sqldb.NewUnitOfWork(db, sqlOutbox, log)
	log.Info("✅ Base de datos lista", zap.String("driver", cfg.StorageDriver))

	// ---------------- Cache ----------------
	var cacheInstance cache.Cache
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		memCache := cache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
		defer memCache.Stop()
		cacheInstance = memCache
	} else {
		defer rdb.Close()
		cacheInstance = cache.NewRedisCache(rdb, cfg.CacheTTL)
		log.Info("✅ Redis conectado, cache habilitado")
	}

	// ---------------- Reference data ----------------
	codes := referencedata.DefaultCodes()
	if cfg.ReferenceDataPath != "" {
		if codes, err = referencedata.LoadFile(cfg.ReferenceDataPath); err != nil {
			log.Fatal("failed to load reference data", zap.String("path", cfg.ReferenceDataPath), zap.Error(err))
		}
	}
	sqlCatalog := referencedata.NewSQLCatalog(db, dialect)
	seeded, err := sqlCatalog.Seed(ctx, codes)
	if err != nil {
		log.Fatal("failed to seed reference data", zap.Error(err))
	}
	log.Info("📚 Datos de referencia cargados", zap.Int("new_codes", seeded))
	catalog := referencedata.NewCachedCatalog(sqlCatalog, cacheInstance, cfg.CacheTTL, log)

	// ---------------- Repositorios ----------------
	accountRepo := guaranteeRepo.NewAccountRepoSQL(db, dialect)
	declRepo := declarationRepo.NewDeclarationRepoSQL(db, dialect)
	rcptRepo := receiptRepo.NewReceiptRepoSQL(db, dialect)

	stores := map[string]sharedDomain.OutboxInspector{"sql": sqlOutbox}
	workers := []*relayer.Worker{}

	var prodRepo productionDomain.ProductionOrderRepository = productionRepo.NewProductionRepoSQL(db, dialect)
	var prodUoW sharedDomain.UnitOfWork = sqlUoW
	var mongoOutbox *sharedMongo.OutboxRepoMongoDB
	if cfg.MongoURI != "" {
		client, err := sharedMongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer disconnectMongo(client, log)

		mongoOutbox = sharedMongo.NewOutboxRepoMongoDB(client, cfg.MongoDatabase, clock)
		if err := mongoOutbox.EnsureIndexes(ctx); err != nil {
			log.Fatal("failed to create MongoDB outbox indexes", zap.Error(err))
		}
		prodRepo = productionMongo.NewProductionRepoMongoDB(client, cfg.MongoDatabase)
		prodUoW = sharedMongo.NewUnitOfWork(client, mongoOutbox, log)
		stores["mongo"] = mongoOutbox
		log.Info("✅ MongoDB conectado, órdenes de producción en Mongo")
	}

	// --------------- Servicios --------------
	guaranteeService := guaranteeApp.NewGuaranteeService(accountRepo, sqlUoW, cacheInstance, cfg.CacheTTL, clock, log)
	engine := validation.NewEngine(validation.DefaultRules(catalog), clock, metrics.NewValidation(reg), log)
	declarationService := declarationApp.NewDeclarationService(declRepo, engine, guaranteeService, sqlUoW, cacheInstance, cfg.CacheTTL, clock, log)
	receiptService := receiptApp.NewReceiptService(rcptRepo, sqlUoW, cacheInstance, cfg.CacheTTL, clock, log)
	productionService := productionApp.NewProductionService(prodRepo, prodUoW, cacheInstance, cfg.CacheTTL, clock, log)

	g, gctx := errgroup.WithContext(ctx)

	// ---------------- Events ---------------
	var eventBus bus.EventBus
	releaseConsumer := guaranteeEvents.NewReleaseConsumer(guaranteeService, log)
	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.String("topic", cfg.KafkaTopic))

		publisher := bus.NewKafkaPublisher(bus.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), log)
		defer publisher.Close()
		eventBus = publisher

		reader := bus.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		consumer := bus.NewConsumerAdapter(reader, releaseConsumer, log)
		g.Go(func() error { return consumer.Run(gctx) })
	} else {
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")

		memBus := bus.NewInMemoryEventBus(cfg.KafkaTopic)
		eventBus = memBus

		consumer := bus.NewChannelConsumer(memBus.Subscribe(100), releaseConsumer, log)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	// ------------ Handlers del outbox ------------
	registry := relayer.NewRegistry()
	guaranteeProjection.NewBalanceProjector(accountRepo, cacheInstance, cfg.CacheTTL, clock).Register(registry)
	declarationProjection.NewDeclarationProjector(declRepo, cacheInstance, cfg.CacheTTL).Register(registry)
	receiptProjection.NewReceiptProjector(rcptRepo, cacheInstance, cfg.CacheTTL).Register(registry)
	productionProjection.NewProductionProjector(prodRepo, cacheInstance, cfg.CacheTTL).Register(registry)

	archive, err := filesystem.NewClearanceArchive(cfg.ArchiveDir)
	if err != nil {
		log.Fatal("failed to open clearance archive", zap.String("dir", cfg.ArchiveDir), zap.Error(err))
	}
	archive.Register(registry)

	registry.RegisterAll("bus_forwarder", handlers.NewBusForwarder(eventBus, log))

	var counter opsHttp.EventCounter
	if cfg.ClickHouseAddr != "" {
		eventLog, err := analytics.NewClickHouseEventLog(cfg.ClickHouseAddr, cfg.ClickHouseDatabase)
		if err != nil {
			log.Fatal("failed to connect to ClickHouse", zap.Error(err))
		}
		defer eventLog.Close()
		if err := eventLog.InitSchema(ctx); err != nil {
			log.Fatal("failed to init ClickHouse schema", zap.Error(err))
		}
		registry.RegisterAll("analytics", handlers.NewAnalyticsRecorder(eventLog))
		counter = eventLog
		log.Info("📊 Analítica de eventos en ClickHouse habilitada")
	}

	if err := registry.Validate(); err != nil {
		log.Fatal("incomplete event registry", zap.Error(err))
	}

	// ------------ Outbox Workers ------------
	outboxMetrics := metrics.NewOutbox(reg)
	workers = append(workers, relayer.NewOutboxWorker(sqlOutbox, registry, clock, cfg.WorkerConfig("sql"), outboxMetrics, log))
	if mongoOutbox != nil {
		workers = append(workers, relayer.NewOutboxWorker(mongoOutbox, registry, clock, cfg.WorkerConfig("mongo"), outboxMetrics, log))
	}

	liveness := make([]opsHttp.WorkerLiveness, 0, len(workers))
	for _, w := range workers {
		g.Go(func() error {
			w.Start(gctx)
			return nil
		})
		liveness = append(liveness, w)
	}

	// ---------------- HTTP ----------------
	router := gin.Default()
	opsHttp.RegisterOpsRoutes(router, opsHttp.NewOpsHandler(liveness, stores, counter, reg))
	guaranteeHttp.RegisterGuaranteeRoutes(router, guaranteeHttp.NewGuaranteeHandler(guaranteeService))
	declarationHttp.RegisterDeclarationRoutes(router, declarationHttp.NewDeclarationHandler(declarationService))
	receiptHttp.RegisterReceiptRoutes(router, receiptHttp.NewReceiptHandler(receiptService))
	productionHttp.RegisterProductionRoutes(router, productionHttp.NewProductionHandler(productionService))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("🛑 Apagando servidor HTTP")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Servicio detenido con error", zap.Error(err))
		return
	}
	log.Info("👋 Servicio detenido")
}

// openSQL abre la base según STORAGE_DRIVER, crea el esquema y devuelve su outbox.
func openSQL(ctx context.Context, cfg *config.Config, clock sharedDomain.Clock) (*sql.DB, sqldb.Dialect, outboxRepo, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		db, err := postgres.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, "", nil, err
		}
		if err := postgres.InitPostgres(ctx, db); err != nil {
			db.Close()
			return nil, "", nil, err
		}
		return db, sqldb.Postgres, postgres.NewOutboxRepoPostgres(db, clock), nil
	default:
		db, err := sqlite.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, "", nil, err
		}
		if err := sqlite.InitSQLite(ctx, db); err != nil {
			db.Close()
			return nil, "", nil, err
		}
		return db, sqldb.SQLite, sqlite.NewOutboxRepoSQLite(db, clock), nil
	}
}

func disconnectMongo(client *mongo.Client, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Warn("Error al desconectar MongoDB", zap.Error(err))
	}
}
