package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Message es lo que reciben los suscriptores del bus en memoria.
type Message struct {
	Key     string
	Payload []byte
}

// ErrSubscriberFull indica que algún suscriptor no tiene hueco; el mensaje no se entregó
// a nadie y el publicador debe reintentarlo.
var ErrSubscriberFull = errors.New("in-memory bus: subscriber buffer full")

// InMemoryEventBus implementa un bus de eventos para UN solo topic.
// Un mensaje llega a todos los suscriptores o a ninguno; el publicador nunca se bloquea.
type InMemoryEventBus struct {
	subscribers []chan Message
	mu          sync.Mutex
	topic       string
}

var _ EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(topic string) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make([]chan Message, 0),
		topic:       topic,
	}
}

func (b *InMemoryEventBus) Topic() string {
	return b.topic
}

// Publish serializa el evento y lo reparte a todos los suscriptores.
func (b *InMemoryEventBus) Publish(ctx context.Context, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := Message{Payload: payload}
	if keyer, ok := event.(Keyer); ok {
		msg.Key = keyer.PartitionKey()
	}

	// Con el mutex tomado sólo los lectores cambian los canales, y leer libera hueco.
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		if len(sub) == cap(sub) {
			return ErrSubscriberFull
		}
	}
	for _, sub := range b.subscribers {
		sub <- msg
	}
	return nil
}

// Subscribe añade un oyente con un buffer de bufferSize mensajes.
func (b *InMemoryEventBus) Subscribe(bufferSize int) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, bufferSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// ChannelConsumer entrega los mensajes de una suscripción en memoria a un MessageHandler.
type ChannelConsumer struct {
	ch         <-chan Message
	handler    MessageHandler
	redelivery Redelivery
	log        *zap.Logger
}

func NewChannelConsumer(ch <-chan Message, handler MessageHandler, log *zap.Logger) *ChannelConsumer {
	return &ChannelConsumer{ch: ch, handler: handler, redelivery: DefaultRedelivery(), log: log}
}

func (c *ChannelConsumer) WithRedelivery(r Redelivery) *ChannelConsumer {
	c.redelivery = r
	return c
}

// Run consume hasta que ctx se cancela. Es bloqueante.
func (c *ChannelConsumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.log.Info("Consumidor en memoria detenido")
			return nil
		case msg := <-c.ch:
			if err := deliver(ctx, c.handler, c.redelivery, c.log, msg.Key, msg.Payload); err != nil {
				c.log.Info("Consumidor en memoria detenido con un mensaje pendiente", zap.String("key", msg.Key))
				return nil
			}
		}
	}
}
