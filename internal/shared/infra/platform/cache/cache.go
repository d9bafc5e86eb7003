package cache

import (
	"context"
	"time"
)

// Cache es una caché clave-valor genérica. Los valores viajan serializados en JSON.
type Cache interface {
	// Get intenta poblar dest (un puntero) con el valor de key.
	// Devuelve (true, nil) en un hit y (false, nil) en un miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set guarda val durante ttl. ttl <= 0 usa el TTL por defecto del adaptador.
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}

// Key compone claves del tipo "namespace:id".
func Key(namespace, id string) string {
	return namespace + ":" + id
}
