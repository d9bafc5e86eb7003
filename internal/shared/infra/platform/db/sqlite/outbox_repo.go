package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/google/uuid"
)

// OutboxRepoSQLite implementa OutboxStore y OutboxInspector sobre SQLite.
// Los instantes se guardan como nanosegundos Unix para que el orden y las comparaciones sean exactos.
// Asume un único dispatcher por base de datos.
type OutboxRepoSQLite struct {
	db    *sql.DB
	clock sharedDomain.Clock
}

func NewOutboxRepoSQLite(db *sql.DB, clock sharedDomain.Clock) *OutboxRepoSQLite {
	return &OutboxRepoSQLite{db: db, clock: clock}
}

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, occurred_at, processed_at, last_error, attempts, next_attempt_at`

// InsertOutboxMessage exige una transacción en el contexto.
func (r *OutboxRepoSQLite) InsertOutboxMessage(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	tx, ok := sqldb.From(ctx)
	if !ok {
		return sharedDomain.ErrNoWorkInContext
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, occurred_at, attempts)
		 VALUES (?,?,?,?,?,?,0)`,
		msg.ID.String(), msg.AggregateType, msg.AggregateID, msg.EventType, string(msg.Payload), msg.OccurredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchPending obtiene los mensajes pendientes y vencidos, los más antiguos primero.
func (r *OutboxRepoSQLite) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+outboxColumns+`
		 FROM outbox
		 WHERE processed_at IS NULL
		   AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		 ORDER BY occurred_at, rowid
		 LIMIT ?`,
		r.clock.Now().UnixNano(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MarkProcessed cierra el mensaje. Un mensaje ya procesado no se toca.
func (r *OutboxRepoSQLite) MarkProcessed(ctx context.Context, id uuid.UUID, dispatchErr error) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox
		 SET processed_at = ?, last_error = ?, attempts = attempts + 1, next_attempt_at = NULL
		 WHERE id = ? AND processed_at IS NULL`,
		r.clock.Now().UnixNano(), nullableError(dispatchErr), id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, id)
}

func (r *OutboxRepoSQLite) ScheduleRetry(ctx context.Context, id uuid.UUID, dispatchErr error, nextAttemptAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox
		 SET last_error = ?, attempts = attempts + 1, next_attempt_at = ?
		 WHERE id = ? AND processed_at IS NULL`,
		nullableError(dispatchErr), nextAttemptAt.UnixNano(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, id)
}

// ------------------ Inspección ------------------

func (r *OutboxRepoSQLite) Summary(ctx context.Context) (sharedDomain.OutboxSummary, error) {
	var s sharedDomain.OutboxSummary
	var oldest sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN processed_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN processed_at IS NULL AND attempts > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN processed_at IS NOT NULL AND last_error IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN processed_at IS NOT NULL AND last_error IS NULL THEN 1 ELSE 0 END), 0),
			MIN(CASE WHEN processed_at IS NULL THEN occurred_at END)
		FROM outbox`,
	).Scan(&s.Pending, &s.Retrying, &s.DeadLettered, &s.Processed, &oldest)
	if err != nil {
		return s, err
	}
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64).UTC()
		s.OldestPendingAt = &t
	}
	return s, nil
}

func (r *OutboxRepoSQLite) ListFailed(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+outboxColumns+`
		 FROM outbox
		 WHERE processed_at IS NOT NULL AND last_error IS NOT NULL
		 ORDER BY processed_at DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Requeue devuelve a pendiente un mensaje cerrado con error. Conserva last_error como histórico.
func (r *OutboxRepoSQLite) Requeue(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox
		 SET processed_at = NULL, attempts = 0, next_attempt_at = NULL
		 WHERE id = ? AND processed_at IS NOT NULL AND last_error IS NOT NULL`,
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return r.requeueMiss(ctx, id)
	}
	return nil
}

// requeueMiss distingue un id inexistente de un mensaje que no está cerrado con error.
func (r *OutboxRepoSQLite) requeueMiss(ctx context.Context, id uuid.UUID) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE id = ?`, id.String()).Scan(&n); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFound, id)
	}
	return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFailed, id)
}

// ------------------ Helpers ------------------

func scanMessages(rows *sql.Rows) ([]sharedDomain.OutboxMessage, error) {
	var msgs []sharedDomain.OutboxMessage
	for rows.Next() {
		var (
			msg         sharedDomain.OutboxMessage
			idStr       string
			payloadStr  string
			occurredAt  int64
			processedAt sql.NullInt64
			lastError   sql.NullString
			nextAttempt sql.NullInt64
		)
		if err := rows.Scan(&idStr, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &payloadStr,
			&occurredAt, &processedAt, &lastError, &msg.Attempts, &nextAttempt); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		msg.ID = id
		msg.Payload = []byte(payloadStr)
		msg.OccurredAt = time.Unix(0, occurredAt).UTC()
		msg.LastError = lastError.String
		if processedAt.Valid {
			t := time.Unix(0, processedAt.Int64).UTC()
			msg.ProcessedAt = &t
		}
		if nextAttempt.Valid {
			t := time.Unix(0, nextAttempt.Int64).UTC()
			msg.NextAttemptAt = &t
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func nullableError(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

func expectOneRow(res sql.Result, id uuid.UUID) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFound, id)
	}
	return nil
}

// Verificación en tiempo de compilación.
var (
	_ sharedDomain.OutboxStore     = (*OutboxRepoSQLite)(nil)
	_ sharedDomain.OutboxInspector = (*OutboxRepoSQLite)(nil)
	_ sqldb.OutboxWriter           = (*OutboxRepoSQLite)(nil)
)
