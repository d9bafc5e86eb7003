package referencedata

import (
	"context"
	"time"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/customsflow/internal/shared/infra/utils"
	"go.uber.org/zap"
)

// CachedCatalog pone una caché delante de otro catálogo (cache-aside).
// Se cachean tanto los aciertos como los fallos.
type CachedCatalog struct {
	next  domain.ReferenceData
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ domain.ReferenceData = (*CachedCatalog)(nil)

func NewCachedCatalog(next domain.ReferenceData, c cache.Cache, ttl time.Duration, log *zap.Logger) *CachedCatalog {
	return &CachedCatalog{next: next, cache: c, ttl: ttl, log: log}
}

func (c *CachedCatalog) Contains(ctx context.Context, list domain.CodeList, code string) (bool, error) {
	key := cacheKey(list, code)

	var found bool
	if ok, err := c.cache.Get(ctx, key, &found); err == nil && ok {
		return found, nil
	} else if err != nil {
		c.log.Debug("Reference cache read failed", zap.String("key", key), zap.Error(err))
	}

	err := utils.Retry(ctx, 3, 50*time.Millisecond, nil, func() error {
		var err error
		found, err = c.next.Contains(ctx, list, code)
		return err
	})
	if err != nil {
		return false, err
	}

	cache.AsyncCacheSet(ctx, c.cache, key, found, c.ttl, c.log)
	return found, nil
}

func cacheKey(list domain.CodeList, code string) string {
	return cache.Key("refdata:"+string(list), normalizeCode(code))
}
