package mongodb

import (
	"context"
	"fmt"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// UnitOfWork usa una sesión con transacción multi-documento (requiere replica set).
// Los repositorios participan usando el contexto de sesión devuelto por Work.Context().
type UnitOfWork struct {
	client *mongo.Client
	outbox *OutboxRepoMongoDB
	log    *zap.Logger
}

func NewUnitOfWork(client *mongo.Client, outbox *OutboxRepoMongoDB, log *zap.Logger) *UnitOfWork {
	return &UnitOfWork{client: client, outbox: outbox, log: log}
}

func (u *UnitOfWork) BeginWork(ctx context.Context) (sharedDomain.Work, error) {
	sess, err := u.client.StartSession()
	if err != nil {
		return nil, err
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, err
	}
	return &work{
		sess:   sess,
		parent: ctx,
		ctx:    mongo.NewSessionContext(ctx, sess),
		outbox: u.outbox,
	}, nil
}

type work struct {
	sess    mongo.Session
	parent  context.Context
	ctx     mongo.SessionContext
	outbox  *OutboxRepoMongoDB
	sources sharedDomain.TrackedSources
	done    bool
}

func (w *work) Context() context.Context {
	return w.ctx
}

func (w *work) Track(sources ...sharedDomain.EventSource) {
	w.sources.Add(sources...)
}

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
	defer w.sess.EndSession(w.parent)
	if err := w.sess.CommitTransaction(w.ctx); err != nil {
		return fmt.Errorf("commit work: %w", err)
	}
	w.sources.ClearAll()
	return nil
}

func (w *work) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.sess.EndSession(w.parent)
	return w.sess.AbortTransaction(w.parent)
}
