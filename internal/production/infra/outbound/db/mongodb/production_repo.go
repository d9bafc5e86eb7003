package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/production/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProductionRepoMongoDB guarda las órdenes en la colección "production_orders".
// Dentro de una unidad de trabajo Mongo las escrituras usan la sesión del contexto.
type ProductionRepoMongoDB struct {
	ordersColl *mongo.Collection
}

var _ domain.ProductionOrderRepository = (*ProductionRepoMongoDB)(nil)

func NewProductionRepoMongoDB(client *mongo.Client, dbName string) *ProductionRepoMongoDB {
	return &ProductionRepoMongoDB{ordersColl: client.Database(dbName).Collection("production_orders")}
}

// Structs BSON locales para no meter tags de BSON en el dominio.
type mongoProductionOrder struct {
	ID          string     `bson:"_id"`
	ProductCode string     `bson:"productCode"`
	PlannedQty  float64    `bson:"plannedQty"`
	ProducedQty float64    `bson:"producedQty"`
	Status      string     `bson:"status"`
	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
}

func (r *ProductionRepoMongoDB) Save(ctx context.Context, o *domain.ProductionOrder) error {
	doc := toMongoOrder(o)
	_, err := r.ordersColl.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save production order: %w", err)
	}
	return nil
}

func (r *ProductionRepoMongoDB) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductionOrder, error) {
	var doc mongoProductionOrder
	err := r.ordersColl.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return fromMongoOrder(doc)
}

func toMongoOrder(o *domain.ProductionOrder) mongoProductionOrder {
	return mongoProductionOrder{
		ID:          o.ID.String(),
		ProductCode: o.ProductCode,
		PlannedQty:  o.PlannedQty,
		ProducedQty: o.ProducedQty,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		CompletedAt: o.CompletedAt,
	}
}

func fromMongoOrder(doc mongoProductionOrder) (*domain.ProductionOrder, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	o := &domain.ProductionOrder{
		ID:          id,
		ProductCode: doc.ProductCode,
		PlannedQty:  doc.PlannedQty,
		ProducedQty: doc.ProducedQty,
		Status:      domain.Status(doc.Status),
		CreatedAt:   doc.CreatedAt.UTC(),
	}
	if doc.CompletedAt != nil {
		at := doc.CompletedAt.UTC()
		o.CompletedAt = &at
	}
	return o, nil
}
