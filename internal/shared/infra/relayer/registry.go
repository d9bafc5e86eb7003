package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/google/uuid"
)

var ErrNoHandler = errors.New("no handler registered for event type")

// Envelope acompaña al evento decodificado con los datos de su fila de outbox.
// Los handlers usan MessageID como clave de idempotencia.
type Envelope struct {
	MessageID     uuid.UUID
	Kind          events.Kind
	AggregateType string
	AggregateID   string
	OccurredAt    time.Time
	Attempt       int
	Payload       json.RawMessage
}

// Handler dispara un efecto lateral a partir de un evento. Debe ser idempotente.
type Handler interface {
	Handle(ctx context.Context, evt events.DomainEvent, env Envelope) error
}

type HandlerFunc func(ctx context.Context, evt events.DomainEvent, env Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, evt events.DomainEvent, env Envelope) error {
	return f(ctx, evt, env)
}

type namedHandler struct {
	name    string
	handler Handler
}

// Registry asocia cada variante de evento con sus handlers.
type Registry struct {
	handlers map[events.Kind][]namedHandler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[events.Kind][]namedHandler)}
}

func (r *Registry) Register(kind events.Kind, name string, h Handler) {
	r.handlers[kind] = append(r.handlers[kind], namedHandler{name: name, handler: h})
}

// RegisterAll suscribe h a todas las variantes (reenvío al bus, analítica...).
func (r *Registry) RegisterAll(name string, h Handler) {
	for _, kind := range events.AllKinds() {
		r.Register(kind, name, h)
	}
}

// On registra un handler tipado; la variante se deduce del tipo T.
func On[T events.DomainEvent](r *Registry, name string, fn func(ctx context.Context, evt T, env Envelope) error) {
	var zero T
	r.Register(zero.Kind(), name, HandlerFunc(func(ctx context.Context, evt events.DomainEvent, env Envelope) error {
		typed, ok := evt.(T)
		if !ok {
			return fmt.Errorf("handler %s: unexpected event %T", name, evt)
		}
		return fn(ctx, typed, env)
	}))
}

// Validate comprueba que todas las variantes tienen al menos un handler.
func (r *Registry) Validate() error {
	var missing []string
	for _, kind := range events.AllKinds() {
		if len(r.handlers[kind]) == 0 {
			missing = append(missing, string(kind))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrNoHandler, strings.Join(missing, ", "))
	}
	return nil
}

// Dispatch decodifica el mensaje y ejecuta todos sus handlers. Un fallo en uno no impide
// ejecutar los demás; los errores se devuelven unidos y el mensaje entero se reintenta.
func (r *Registry) Dispatch(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	evt, err := events.Decode(msg.EventType, msg.ID, msg.OccurredAt, msg.Payload)
	if err != nil {
		return err
	}

	handlers := r.handlers[evt.Kind()]
	if len(handlers) == 0 {
		return fmt.Errorf("%w: %s", ErrNoHandler, evt.Kind())
	}

	env := Envelope{
		MessageID:     msg.ID,
		Kind:          evt.Kind(),
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		OccurredAt:    msg.OccurredAt,
		Attempt:       msg.Attempts + 1,
		Payload:       msg.Payload,
	}

	var errs []error
	for _, nh := range handlers {
		if err := safeHandle(ctx, nh, evt, env); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", nh.name, err))
		}
	}
	return errors.Join(errs...)
}

func safeHandle(ctx context.Context, nh namedHandler, evt events.DomainEvent, env Envelope) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return nh.handler.Handle(ctx, evt, env)
}
