package bus

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

// NewKafkaWriter crea un writer que reparte por clave (misma clave, misma partición).
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var key []byte
	if keyer, ok := event.(Keyer); ok {
		key = []byte(keyer.PartitionKey())
	}

	msg := kafka.Message{
		Key:   key,
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully", zap.ByteString("key", key))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Verificación estática
var _ EventBus = (*KafkaPublisher)(nil)
