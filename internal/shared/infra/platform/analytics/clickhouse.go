package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// EventRecord es la fila analítica de un evento despachado.
type EventRecord struct {
	EventID       string
	EventType     string
	AggregateType string
	AggregateID   string
	OccurredAt    time.Time
	Payload       string
}

// EventCount agrupa eventos por tipo.
type EventCount struct {
	EventType string `json:"eventType"`
	Count     uint64 `json:"count"`
}

// ClickHouseEventLog guarda cada evento despachado. La tabla es ReplacingMergeTree por
// event_id, así que una entrega repetida colapsa en una sola fila.
type ClickHouseEventLog struct {
	db *sql.DB
}

func NewClickHouseEventLog(addr string, dbName string) (*ClickHouseEventLog, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return &ClickHouseEventLog{db: conn}, nil
}

func (r *ClickHouseEventLog) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS outbox_events_log (
			event_id String,
			event_type LowCardinality(String),
			aggregate_type LowCardinality(String),
			aggregate_id String,
			occurred_at DateTime64(3, 'UTC'),
			payload String,
			recorded_at DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(recorded_at)
		ORDER BY event_id`)
	if err != nil {
		return fmt.Errorf("failed to init clickhouse schema: %w", err)
	}
	return nil
}

// LogBatch inserta un lote de eventos. ClickHouse funciona mejor con inserciones en lote.
func (r *ClickHouseEventLog) LogBatch(ctx context.Context, records []EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO outbox_events_log (event_id, event_type, aggregate_type, aggregate_id, occurred_at, payload, recorded_at)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	recordedAt := time.Now().UTC()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.EventID,
			rec.EventType,
			rec.AggregateType,
			rec.AggregateID,
			rec.OccurredAt,
			rec.Payload,
			recordedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountByType cuenta eventos distintos por tipo (FINAL aplica la deduplicación pendiente).
func (r *ClickHouseEventLog) CountByType(ctx context.Context) ([]EventCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, count() AS total
		FROM outbox_events_log FINAL
		GROUP BY event_type
		ORDER BY event_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventCount
	for rows.Next() {
		var c EventCount
		if err := rows.Scan(&c.EventType, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClickHouseEventLog) Close() error {
	return r.db.Close()
}
