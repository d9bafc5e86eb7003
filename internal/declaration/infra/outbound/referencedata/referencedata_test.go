package referencedata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/customsflow/tests/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticCatalog_Contains(t *testing.T) {
	cat := NewStaticCatalog(Codes{
		domain.CodeListCountry: {"es", " CN "},
	})
	ctx := context.Background()

	tests := []struct {
		list domain.CodeList
		code string
		want bool
	}{
		{domain.CodeListCountry, "ES", true},
		{domain.CodeListCountry, "cn", true},
		{domain.CodeListCountry, "US", false},
		{domain.CodeListCurrency, "ES", false},
	}
	for _, tt := range tests {
		got, err := cat.Contains(ctx, tt.list, tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s", tt.list, tt.code)
	}
}

func TestSQLCatalog_SeedIsIdempotent(t *testing.T) {
	// Arrange
	ctx := context.Background()
	db, err := sqlite.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.InitSQLite(ctx, db))
	cat := NewSQLCatalog(db, sqldb.SQLite)

	// Act
	first, err := cat.Seed(ctx, DefaultCodes())
	require.NoError(t, err)
	second, err := cat.Seed(ctx, DefaultCodes())
	require.NoError(t, err)

	// Assert
	assert.Greater(t, first, 0)
	assert.Equal(t, 0, second)

	ok, err := cat.Contains(ctx, domain.CodeListTariff, "85171300")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cat.Contains(ctx, domain.CodeListCurrency, "xyz")
	require.NoError(t, err)
	assert.False(t, ok)
}

type countingRef struct {
	calls atomic.Int32
	fail  int32
	found bool
}

func (r *countingRef) Contains(ctx context.Context, list domain.CodeList, code string) (bool, error) {
	n := r.calls.Add(1)
	if n <= r.fail {
		return false, errors.New("temporary failure")
	}
	return r.found, nil
}

func TestCachedCatalog_CachesAnswers(t *testing.T) {
	// Arrange
	next := &countingRef{found: true}
	c := mocks.NewDummyCache()
	cat := NewCachedCatalog(next, c, time.Hour, zap.NewNop())
	ctx := context.Background()

	// Act
	ok, err := cat.Contains(ctx, domain.CodeListCountry, "ES")
	require.NoError(t, err)
	assert.True(t, ok)

	// la escritura en caché es asíncrona
	require.Eventually(t, func() bool {
		_, cached := c.Raw(cacheKey(domain.CodeListCountry, "ES"))
		return cached
	}, time.Second, 10*time.Millisecond)

	ok, err = cat.Contains(ctx, domain.CodeListCountry, "es")

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedCatalog_RetriesTransientFailures(t *testing.T) {
	next := &countingRef{fail: 2, found: false}
	cat := NewCachedCatalog(next, mocks.NewDummyCache(), time.Hour, zap.NewNop())

	ok, err := cat.Contains(context.Background(), domain.CodeListTariff, "99999999")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestCachedCatalog_GivesUpAfterRetries(t *testing.T) {
	next := &countingRef{fail: 10}
	cat := NewCachedCatalog(next, mocks.NewDummyCache(), time.Hour, zap.NewNop())

	_, err := cat.Contains(context.Background(), domain.CodeListTariff, "85171300")

	assert.Error(t, err)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("fichero válido", func(t *testing.T) {
		path := filepath.Join(dir, "codes.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"tariff":["85171300"],"currency":["EUR","USD"]}`), 0o644))

		codes, err := LoadFile(path)

		require.NoError(t, err)
		assert.Equal(t, []string{"85171300"}, codes[domain.CodeListTariff])
		assert.Len(t, codes[domain.CodeListCurrency], 2)
	})

	t.Run("lista desconocida", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"incoterm":["FOB"]}`), 0o644))

		_, err := LoadFile(path)

		assert.ErrorContains(t, err, "unknown code list")
	})

	t.Run("no existe", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.json"))
		assert.Error(t, err)
	})
}
