package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IntegrationEvent es el sobre que cruza los límites del proceso (Kafka o bus en memoria).
// Los consumidores deduplican por ID, que coincide con el ID del mensaje de outbox.
type IntegrationEvent struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

func (e IntegrationEvent) PartitionKey() string {
	return e.AggregateID
}
