package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AsyncCacheSet actualiza la caché en background sin bloquear al llamador.
func AsyncCacheSet(ctx context.Context, cache Cache, key string, value interface{}, ttl time.Duration, log *zap.Logger) {
	if cache == nil {
		return
	}

	go func() {
		// Dispara y olvida: la escritura no depende de que el contexto del llamador siga vivo.
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 200*time.Millisecond)
		defer cancel()

		if err := cache.Set(cacheCtx, key, value, ttl); err != nil {
			log.Warn("Cache update failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// AsyncCacheDelete elimina de la caché en background.
func AsyncCacheDelete(ctx context.Context, cache Cache, key string, log *zap.Logger) {
	if cache == nil {
		return
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 200*time.Millisecond)
		defer cancel()

		if err := cache.Delete(cacheCtx, key); err != nil {
			log.Warn("Cache deletion failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}
