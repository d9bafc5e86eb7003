package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/davicafu/customsflow/internal/shared/infra/relayer"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"./customsflow.db"`
	DatabaseURL   string `env:"DATABASE_URL"`

	// Sin MONGO_URI las órdenes de producción van a la base SQL.
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"customsflow"`

	RedisAddr string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	UseKafka     bool     `env:"USE_KAFKA" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"customsflow-events"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"customsflow-guarantee-release"`

	// Sin CLICKHOUSE_ADDR no hay analítica.
	ClickHouseAddr     string `env:"CLICKHOUSE_ADDR"`
	ClickHouseDatabase string `env:"CLICKHOUSE_DATABASE" envDefault:"default"`

	OutboxInterval    time.Duration `env:"OUTBOX_INTERVAL" envDefault:"10s"`
	OutboxBackoff     time.Duration `env:"OUTBOX_BACKOFF" envDefault:"30s"`
	OutboxBatchSize   int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	OutboxMaxAttempts int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"8"`
	OutboxRetryBase   time.Duration `env:"OUTBOX_RETRY_BASE" envDefault:"5s"`
	OutboxRetryMax    time.Duration `env:"OUTBOX_RETRY_MAX" envDefault:"5m"`

	// Cero: el ciclo se limita a OUTBOX_INTERVAL + OUTBOX_BACKOFF.
	OutboxCycleTimeout time.Duration `env:"OUTBOX_CYCLE_TIMEOUT"`

	ArchiveDir        string `env:"ARCHIVE_DIR" envDefault:"./archive"`
	ReferenceDataPath string `env:"REFERENCE_DATA_PATH"`

	// Sin OTEL_ENDPOINT el tracing queda desactivado.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// LoadConfig carga .env si existe y después las variables de entorno.
func LoadConfig() (*Config, error) {
	// Un .env ausente no es un error: en producción todo viene del entorno.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.OutboxInterval <= 0 || c.OutboxBackoff <= 0 {
		errs = append(errs, errors.New("OUTBOX_INTERVAL and OUTBOX_BACKOFF must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("OUTBOX_MAX_ATTEMPTS must be positive"))
	}
	if c.UseKafka && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when USE_KAFKA is set"))
	}
	return errors.Join(errs...)
}

// RetryPolicy construye la política de reintentos del dispatcher.
func (c *Config) RetryPolicy() relayer.RetryPolicy {
	return relayer.RetryPolicy{
		MaxAttempts: c.OutboxMaxAttempts,
		BaseBackoff: c.OutboxRetryBase,
		MaxBackoff:  c.OutboxRetryMax,
	}
}

// WorkerConfig construye la configuración de un dispatcher con nombre.
func (c *Config) WorkerConfig(name string) relayer.WorkerConfig {
	return relayer.WorkerConfig{
		Name:         name,
		Interval:     c.OutboxInterval,
		Backoff:      c.OutboxBackoff,
		BatchSize:    c.OutboxBatchSize,
		Retry:        c.RetryPolicy(),
		CycleTimeout: c.OutboxCycleTimeout,
	}
}
