package utils

import (
	"context"
	"errors"
	"time"
)

// Retry ejecuta fn hasta attempts veces, esperando delay entre intentos.
// Si stop(err) es true el error se devuelve sin reintentar (p. ej. "no encontrado").
func Retry(ctx context.Context, attempts int, delay time.Duration, stop func(error) bool, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if stop != nil && stop(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
			// espera antes del siguiente intento
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}

// StopOn devuelve un criterio de parada para Retry que corta ante cualquiera de targets.
func StopOn(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}
