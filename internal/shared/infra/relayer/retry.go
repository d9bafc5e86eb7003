package relayer

import "time"

// RetryPolicy decide qué hacer con un mensaje cuyo handler falló.
// MaxAttempts = 1 cierra el mensaje con su error al primer fallo (sin reintentos).
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 8,
		BaseBackoff: 5 * time.Second,
		MaxBackoff:  5 * time.Minute,
	}
}

func SingleAttemptPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Exhausted indica si el intento número attempt (1-based) fue el último permitido.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts <= 1 || attempt >= p.MaxAttempts
}

// Backoff devuelve la espera tras el intento attempt: base·2^(attempt-1), con tope MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
