package domain

import (
	"context"
	"fmt"
)

// UnitOfWork abre transacciones de negocio que incluyen el outbox.
type UnitOfWork interface {
	BeginWork(ctx context.Context) (Work, error)
}

// Work es una transacción en curso. Los repositorios deben usar Context() para
// participar en ella; Commit persiste además los eventos de los agregados registrados.
type Work interface {
	Context() context.Context
	Track(sources ...EventSource)
	Commit() error
	Rollback() error
}

// RunInWork ejecuta fn dentro de una unidad de trabajo: commit si fn termina bien,
// rollback ante error o panic.
func RunInWork(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context, w Work) error) (err error) {
	w, err := uow.BeginWork(ctx)
	if err != nil {
		return fmt.Errorf("begin work: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = w.Rollback()
			panic(p)
		}
		if err != nil {
			_ = w.Rollback()
		}
	}()

	if err = fn(w.Context(), w); err != nil {
		return err
	}
	return w.Commit()
}

// TrackedSources acumula fuentes sin duplicados, conservando el orden de registro.
type TrackedSources struct {
	list []EventSource
	seen map[EventSource]struct{}
}

func (t *TrackedSources) Add(sources ...EventSource) {
	if t.seen == nil {
		t.seen = make(map[EventSource]struct{})
	}
	for _, s := range sources {
		if s == nil {
			continue
		}
		if _, ok := t.seen[s]; ok {
			continue
		}
		t.seen[s] = struct{}{}
		t.list = append(t.list, s)
	}
}

func (t *TrackedSources) List() []EventSource {
	return t.list
}

// ClearAll vacía los buffers tras un commit correcto.
func (t *TrackedSources) ClearAll() {
	for _, s := range t.list {
		s.ClearEvents()
	}
}
