package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// InMemoryOutbox implementa OutboxStore y OutboxInspector sobre un mapa.
type InMemoryOutbox struct {
	mu    sync.Mutex
	msgs  map[uuid.UUID]*sharedDomain.OutboxMessage
	order []uuid.UUID
	clock sharedDomain.Clock

	// FetchErr hace fallar FetchPending (almacén caído).
	FetchErr error
}

var (
	_ sharedDomain.OutboxStore     = (*InMemoryOutbox)(nil)
	_ sharedDomain.OutboxInspector = (*InMemoryOutbox)(nil)
)

func NewInMemoryOutbox(clock sharedDomain.Clock) *InMemoryOutbox {
	return &InMemoryOutbox{
		msgs:  make(map[uuid.UUID]*sharedDomain.OutboxMessage),
		clock: clock,
	}
}

func (o *InMemoryOutbox) InsertOutboxMessage(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.msgs[msg.ID]; ok {
		return errors.New("duplicate outbox message")
	}
	m := msg
	o.msgs[msg.ID] = &m
	o.order = append(o.order, msg.ID)
	return nil
}

func (o *InMemoryOutbox) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FetchErr != nil {
		return nil, o.FetchErr
	}

	now := o.clock.Now()
	var out []sharedDomain.OutboxMessage
	for _, id := range o.order {
		m := o.msgs[id]
		if m.ProcessedAt != nil {
			continue
		}
		if m.NextAttemptAt != nil && m.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *InMemoryOutbox) MarkProcessed(ctx context.Context, id uuid.UUID, dispatchErr error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.msgs[id]
	if !ok || m.ProcessedAt != nil {
		return sharedDomain.ErrOutboxMessageNotFound
	}
	now := o.clock.Now()
	m.ProcessedAt = &now
	m.NextAttemptAt = nil
	m.LastError = sharedDomain.ErrorText(dispatchErr)
	m.Attempts++
	return nil
}

func (o *InMemoryOutbox) ScheduleRetry(ctx context.Context, id uuid.UUID, dispatchErr error, nextAttemptAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.msgs[id]
	if !ok || m.ProcessedAt != nil {
		return sharedDomain.ErrOutboxMessageNotFound
	}
	m.LastError = sharedDomain.ErrorText(dispatchErr)
	m.Attempts++
	next := nextAttemptAt
	m.NextAttemptAt = &next
	return nil
}

func (o *InMemoryOutbox) Summary(ctx context.Context) (sharedDomain.OutboxSummary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var s sharedDomain.OutboxSummary
	for _, m := range o.msgs {
		switch {
		case m.IsDeadLettered():
			s.DeadLettered++
		case m.ProcessedAt != nil:
			s.Processed++
		default:
			s.Pending++
			if m.Attempts > 0 {
				s.Retrying++
			}
			if s.OldestPendingAt == nil || m.OccurredAt.Before(*s.OldestPendingAt) {
				at := m.OccurredAt
				s.OldestPendingAt = &at
			}
		}
	}
	return s, nil
}

func (o *InMemoryOutbox) ListFailed(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []sharedDomain.OutboxMessage
	for _, id := range o.order {
		if m := o.msgs[id]; m.IsDeadLettered() {
			out = append(out, *m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *InMemoryOutbox) Requeue(ctx context.Context, id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.msgs[id]
	if !ok {
		return sharedDomain.ErrOutboxMessageNotFound
	}
	if !m.IsDeadLettered() {
		return sharedDomain.ErrOutboxMessageNotFailed
	}
	m.ProcessedAt = nil
	m.NextAttemptAt = nil
	m.Attempts = 0
	return nil
}

// Get devuelve una copia del mensaje para aserciones.
func (o *InMemoryOutbox) Get(id uuid.UUID) (sharedDomain.OutboxMessage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.msgs[id]
	if !ok {
		return sharedDomain.OutboxMessage{}, false
	}
	return *m, true
}

// All devuelve todos los mensajes en orden de inserción.
func (o *InMemoryOutbox) All() []sharedDomain.OutboxMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]sharedDomain.OutboxMessage, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, *o.msgs[id])
	}
	return out
}

// ---------------- Unidad de trabajo en memoria ----------------

// InMemoryUnitOfWork vuelca al outbox los eventos de los agregados registrados al hacer commit.
// Los repositorios en memoria escriben directamente; sirve para tests de casos de uso.
type InMemoryUnitOfWork struct {
	Outbox *InMemoryOutbox

	mu             sync.Mutex
	failNextCommit error
	Commits        int
	Rollbacks      int
}

func NewInMemoryUnitOfWork(outbox *InMemoryOutbox) *InMemoryUnitOfWork {
	return &InMemoryUnitOfWork{Outbox: outbox}
}

// FailNextCommit hace que el siguiente Commit devuelva err sin escribir nada.
func (u *InMemoryUnitOfWork) FailNextCommit(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failNextCommit = err
}

func (u *InMemoryUnitOfWork) BeginWork(ctx context.Context) (sharedDomain.Work, error) {
	return &memWork{uow: u, ctx: ctx}, nil
}

type memWork struct {
	uow     *InMemoryUnitOfWork
	ctx     context.Context
	sources sharedDomain.TrackedSources
	done    bool
}

func (w *memWork) Context() context.Context {
	return w.ctx
}

func (w *memWork) Track(sources ...sharedDomain.EventSource) {
	w.sources.Add(sources...)
}

func (w *memWork) Commit() error {
	if w.done {
		return sharedDomain.ErrWorkFinished
	}

	w.uow.mu.Lock()
	failErr := w.uow.failNextCommit
	w.uow.failNextCommit = nil
	w.uow.mu.Unlock()
	if failErr != nil {
		return failErr
	}

	msgs, err := sharedDomain.CollectOutboxMessages(w.sources.List())
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := w.uow.Outbox.InsertOutboxMessage(w.ctx, msg); err != nil {
			return err
		}
	}
	w.done = true
	w.sources.ClearAll()

	w.uow.mu.Lock()
	w.uow.Commits++
	w.uow.mu.Unlock()
	return nil
}

func (w *memWork) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	w.uow.mu.Lock()
	w.uow.Rollbacks++
	w.uow.mu.Unlock()
	return nil
}

// ---------------- testify mocks ----------------

// MockDispatcher simula el Registry.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockOutboxStore simula el almacén del outbox.
type MockOutboxStore struct {
	mock.Mock
}

func (m *MockOutboxStore) InsertOutboxMessage(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockOutboxStore) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	args := m.Called(ctx, limit)
	msgs, _ := args.Get(0).([]sharedDomain.OutboxMessage)
	return msgs, args.Error(1)
}

func (m *MockOutboxStore) MarkProcessed(ctx context.Context, id uuid.UUID, dispatchErr error) error {
	args := m.Called(ctx, id, dispatchErr)
	return args.Error(0)
}

func (m *MockOutboxStore) ScheduleRetry(ctx context.Context, id uuid.UUID, dispatchErr error, nextAttemptAt time.Time) error {
	args := m.Called(ctx, id, dispatchErr, nextAttemptAt)
	return args.Error(0)
}

// MockPublisher simula el bus de eventos.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event interface{}) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
