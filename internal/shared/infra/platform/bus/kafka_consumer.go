package bus

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader es la parte de *kafka.Reader que usa el adapter.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

var _ MessageReader = (*kafka.Reader)(nil)

// ConsumerAdapter escucha un topic de Kafka y entrega cada mensaje a un MessageHandler.
// El offset se confirma sólo cuando el handler ha terminado con el mensaje.
type ConsumerAdapter struct {
	reader     MessageReader
	handler    MessageHandler
	redelivery Redelivery
	log        *zap.Logger
}

func NewConsumerAdapter(reader MessageReader, handler MessageHandler, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:     reader,
		handler:    handler,
		redelivery: DefaultRedelivery(),
		log:        log,
	}
}

func (c *ConsumerAdapter) WithRedelivery(r Redelivery) *ConsumerAdapter {
	c.redelivery = r
	return c
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// Run consume hasta que ctx se cancela. Es bloqueante.
func (c *ConsumerAdapter) Run(ctx context.Context) error {
	topic := c.reader.Config().Topic
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)
	defer c.reader.Close()

	for {
		// FetchMessage no confirma: el offset avanza con CommitMessages.
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", topic))
				return nil
			}
			c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
			continue
		}

		if err := deliver(ctx, c.handler, c.redelivery, c.log, string(msg.Key), msg.Value); err != nil {
			// Sin commit: el grupo lo vuelve a entregar al reanudar.
			c.log.Info("Consumidor de Kafka detenido con un mensaje sin confirmar",
				zap.String("topic", topic),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("Error al confirmar offset de Kafka",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}
