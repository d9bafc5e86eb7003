package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"go.uber.org/zap"
)

// OutboxWriter es la parte del outbox que necesita el commit.
type OutboxWriter interface {
	InsertOutboxMessage(ctx context.Context, msg sharedDomain.OutboxMessage) error
}

// UnitOfWork abre una *sql.Tx por operación de negocio. Las filas del agregado y
// las del outbox se escriben en la misma transacción.
type UnitOfWork struct {
	db     *sql.DB
	outbox OutboxWriter
	log    *zap.Logger
}

func NewUnitOfWork(db *sql.DB, outbox OutboxWriter, log *zap.Logger) *UnitOfWork {
	return &UnitOfWork{db: db, outbox: outbox, log: log}
}

func (u *UnitOfWork) BeginWork(ctx context.Context) (sharedDomain.Work, error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &work{
		tx:     tx,
		ctx:    WithTx(ctx, tx),
		outbox: u.outbox,
		log:    u.log,
	}, nil
}

type work struct {
	tx      *sql.Tx
	ctx     context.Context
	outbox  OutboxWriter
	sources sharedDomain.TrackedSources
	done    bool
	log     *zap.Logger
}

func (w *work) Context() context.Context {
	return w.ctx
}

func (w *work) Track(sources ...sharedDomain.EventSource) {
	w.sources.Add(sources...)
}

// Commit vuelca los eventos al outbox y confirma. Los buffers sólo se vacían si el commit tuvo éxito.
func (w *work) Commit() error {
	if w.done {
		return sharedDomain.ErrWorkFinished
	}

	msgs, err := sharedDomain.CollectOutboxMessages(w.sources.List())
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := w.outbox.InsertOutboxMessage(w.ctx, msg); err != nil {
			return fmt.Errorf("failed to insert outbox message %s: %w", msg.ID, err)
		}
	}

	w.done = true
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit work: %w", err)
	}
	w.sources.ClearAll()

	if len(msgs) > 0 {
		w.log.Debug("Outbox messages committed", zap.Int("count", len(msgs)))
	}
	return nil
}

func (w *work) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.tx.Rollback()
}
