package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.MongoURI)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 8, policy.MaxAttempts)
	assert.Equal(t, 5*time.Second, policy.BaseBackoff)
	assert.Equal(t, 5*time.Minute, policy.MaxBackoff)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/customs")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "1")
	t.Setenv("OUTBOX_INTERVAL", "2s")
	t.Setenv("OUTBOX_CYCLE_TIMEOUT", "15s")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RetryPolicy().Exhausted(1))

	wc := cfg.WorkerConfig("sql")
	assert.Equal(t, "sql", wc.Name)
	assert.Equal(t, 2*time.Second, wc.Interval)
	assert.Equal(t, 15*time.Second, wc.CycleTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{StorageDriver: DriverSQLite, OutboxBatchSize: 10, OutboxInterval: time.Second, OutboxBackoff: time.Second, OutboxMaxAttempts: 3}
	}

	tests := []struct {
		name    string
		mut     func(c *Config)
		wantErr string
	}{
		{"válida", func(c *Config) {}, ""},
		{"driver desconocido", func(c *Config) { c.StorageDriver = "oracle" }, "unknown STORAGE_DRIVER"},
		{"postgres sin DSN", func(c *Config) { c.StorageDriver = DriverPostgres }, "DATABASE_URL"},
		{"lote cero", func(c *Config) { c.OutboxBatchSize = 0 }, "OUTBOX_BATCH_SIZE"},
		{"intervalo negativo", func(c *Config) { c.OutboxInterval = -time.Second }, "OUTBOX_INTERVAL"},
		{"sin intentos", func(c *Config) { c.OutboxMaxAttempts = 0 }, "OUTBOX_MAX_ATTEMPTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mut(&c)

			err := c.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
