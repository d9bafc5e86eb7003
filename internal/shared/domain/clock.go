package domain

import "time"

// Clock es la fuente de "ahora" del sistema. Se inyecta para poder fijar el tiempo en tests.
type Clock interface {
	Now() time.Time
}

// SystemClock devuelve la hora real en UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapta una función a Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}
