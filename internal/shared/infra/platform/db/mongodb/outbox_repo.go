package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OutboxRepoMongoDB implementa OutboxStore y OutboxInspector sobre una colección "outbox".
type OutboxRepoMongoDB struct {
	outboxColl *mongo.Collection
	clock      sharedDomain.Clock
}

func NewOutboxRepoMongoDB(client *mongo.Client, dbName string, clock sharedDomain.Clock) *OutboxRepoMongoDB {
	outboxColl := client.Database(dbName).Collection("outbox")
	return &OutboxRepoMongoDB{outboxColl: outboxColl, clock: clock}
}

// mongoOutboxMessage mapea el documento BSON.
type mongoOutboxMessage struct {
	ID            string     `bson:"_id"`
	AggregateType string     `bson:"aggregateType"`
	AggregateID   string     `bson:"aggregateId"`
	EventType     string     `bson:"eventType"`
	Payload       string     `bson:"payload"`
	OccurredAt    time.Time  `bson:"occurredAt"`
	ProcessedAt   *time.Time `bson:"processedAt"`
	LastError     *string    `bson:"lastError"`
	Attempts      int        `bson:"attempts"`
	NextAttemptAt *time.Time `bson:"nextAttemptAt"`
}

// EnsureIndexes crea el índice usado por FetchPending.
func (r *OutboxRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.outboxColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "processedAt", Value: 1}, {Key: "occurredAt", Value: 1}},
	})
	return err
}

// InsertOutboxMessage exige una sesión con transacción en el contexto.
func (r *OutboxRepoMongoDB) InsertOutboxMessage(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	if mongo.SessionFromContext(ctx) == nil {
		return sharedDomain.ErrNoWorkInContext
	}

	doc := mongoOutboxMessage{
		ID:            msg.ID.String(),
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       string(msg.Payload),
		OccurredAt:    msg.OccurredAt.UTC(),
	}
	if _, err := r.outboxColl.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepoMongoDB) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	filter := bson.M{
		"processedAt": nil,
		"$or": bson.A{
			bson.M{"nextAttemptAt": nil},
			bson.M{"nextAttemptAt": bson.M{"$lte": r.clock.Now()}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	return r.find(ctx, filter, opts)
}

func (r *OutboxRepoMongoDB) MarkProcessed(ctx context.Context, id uuid.UUID, dispatchErr error) error {
	update := bson.M{
		"$set":   bson.M{"processedAt": r.clock.Now(), "lastError": errorPtr(dispatchErr)},
		"$inc":   bson.M{"attempts": 1},
		"$unset": bson.M{"nextAttemptAt": ""},
	}
	return r.updatePending(ctx, id, update)
}

func (r *OutboxRepoMongoDB) ScheduleRetry(ctx context.Context, id uuid.UUID, dispatchErr error, nextAttemptAt time.Time) error {
	update := bson.M{
		"$set": bson.M{"lastError": errorPtr(dispatchErr), "nextAttemptAt": nextAttemptAt.UTC()},
		"$inc": bson.M{"attempts": 1},
	}
	return r.updatePending(ctx, id, update)
}

// ------------------ Inspección ------------------

func (r *OutboxRepoMongoDB) Summary(ctx context.Context) (sharedDomain.OutboxSummary, error) {
	var s sharedDomain.OutboxSummary
	counts := []struct {
		filter bson.M
		dest   *int
	}{
		{bson.M{"processedAt": nil}, &s.Pending},
		{bson.M{"processedAt": nil, "attempts": bson.M{"$gt": 0}}, &s.Retrying},
		{bson.M{"processedAt": bson.M{"$ne": nil}, "lastError": bson.M{"$ne": nil}}, &s.DeadLettered},
		{bson.M{"processedAt": bson.M{"$ne": nil}, "lastError": nil}, &s.Processed},
	}
	for _, c := range counts {
		n, err := r.outboxColl.CountDocuments(ctx, c.filter)
		if err != nil {
			return s, err
		}
		*c.dest = int(n)
	}

	var oldest mongoOutboxMessage
	err := r.outboxColl.FindOne(ctx, bson.M{"processedAt": nil},
		options.FindOne().SetSort(bson.D{{Key: "occurredAt", Value: 1}}),
	).Decode(&oldest)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
	case err != nil:
		return s, err
	default:
		t := oldest.OccurredAt.UTC()
		s.OldestPendingAt = &t
	}
	return s, nil
}

func (r *OutboxRepoMongoDB) ListFailed(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	filter := bson.M{"processedAt": bson.M{"$ne": nil}, "lastError": bson.M{"$ne": nil}}
	opts := options.Find().SetSort(bson.D{{Key: "processedAt", Value: -1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *OutboxRepoMongoDB) Requeue(ctx context.Context, id uuid.UUID) error {
	filter := bson.M{"_id": id.String(), "processedAt": bson.M{"$ne": nil}, "lastError": bson.M{"$ne": nil}}
	update := bson.M{
		"$set":   bson.M{"processedAt": nil, "attempts": 0},
		"$unset": bson.M{"nextAttemptAt": ""},
	}
	res, err := r.outboxColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.outboxColl.CountDocuments(ctx, bson.M{"_id": id.String()})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFound, id)
		}
		return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFailed, id)
	}
	return nil
}

// ------------------ Helpers ------------------

func (r *OutboxRepoMongoDB) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]sharedDomain.OutboxMessage, error) {
	cursor, err := r.outboxColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []sharedDomain.OutboxMessage
	for cursor.Next(ctx) {
		var mo mongoOutboxMessage
		if err := cursor.Decode(&mo); err != nil {
			return nil, err
		}
		msg, err := fromMongoOutboxMessage(&mo)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, cursor.Err()
}

func (r *OutboxRepoMongoDB) updatePending(ctx context.Context, id uuid.UUID, update bson.M) error {
	res, err := r.outboxColl.UpdateOne(ctx, bson.M{"_id": id.String(), "processedAt": nil}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFound, id)
	}
	return nil
}

func fromMongoOutboxMessage(mo *mongoOutboxMessage) (sharedDomain.OutboxMessage, error) {
	id, err := uuid.Parse(mo.ID)
	if err != nil {
		return sharedDomain.OutboxMessage{}, fmt.Errorf("invalid UUID in outbox document: %w", err)
	}
	msg := sharedDomain.OutboxMessage{
		ID:            id,
		AggregateType: mo.AggregateType,
		AggregateID:   mo.AggregateID,
		EventType:     mo.EventType,
		Payload:       []byte(mo.Payload),
		OccurredAt:    mo.OccurredAt.UTC(),
		ProcessedAt:   mo.ProcessedAt,
		Attempts:      mo.Attempts,
		NextAttemptAt: mo.NextAttemptAt,
	}
	if mo.LastError != nil {
		msg.LastError = *mo.LastError
	}
	return msg, nil
}

func errorPtr(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

// Verificación en tiempo de compilación.
var (
	_ sharedDomain.OutboxStore     = (*OutboxRepoMongoDB)(nil)
	_ sharedDomain.OutboxInspector = (*OutboxRepoMongoDB)(nil)
)
