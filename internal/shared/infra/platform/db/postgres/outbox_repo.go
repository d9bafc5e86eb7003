package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/google/uuid"
)

// ClaimLease es el tiempo que un dispatcher retiene los mensajes que ha reclamado.
// Si muere a mitad de lote, otra instancia los recupera al expirar.
const ClaimLease = 2 * time.Minute

// OutboxRepoPostgres implementa OutboxStore y OutboxInspector sobre Postgres.
// FetchPending reclama el lote de forma atómica (FOR UPDATE SKIP LOCKED + lease),
// así que varias instancias del dispatcher pueden convivir.
type OutboxRepoPostgres struct {
	db    *sql.DB
	clock sharedDomain.Clock
	lease time.Duration
}

func NewOutboxRepoPostgres(db *sql.DB, clock sharedDomain.Clock) *OutboxRepoPostgres {
	return &OutboxRepoPostgres{db: db, clock: clock, lease: ClaimLease}
}

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, occurred_at, processed_at, last_error, attempts, next_attempt_at, seq`

func (r *OutboxRepoPostgres) InsertOutboxMessage(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	tx, ok := sqldb.From(ctx)
	if !ok {
		return sharedDomain.ErrNoWorkInContext
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, occurred_at, attempts)
		 VALUES ($1,$2,$3,$4,$5,$6,0)`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, []byte(msg.Payload), msg.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchPending reclama hasta limit mensajes vencidos y no reclamados por otra instancia.
func (r *OutboxRepoPostgres) FetchPending(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	now := r.clock.Now()
	rows, err := r.db.QueryContext(ctx,
		`UPDATE outbox SET locked_until = $1
		 WHERE id IN (
			SELECT id FROM outbox
			WHERE processed_at IS NULL
			  AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
			  AND (locked_until IS NULL OR locked_until <= $2)
			ORDER BY occurred_at, seq
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+outboxColumns,
		now.Add(r.lease), now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, seqs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING no garantiza orden.
	idx := make([]int, len(msgs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ma, mb := msgs[idx[a]], msgs[idx[b]]
		if !ma.OccurredAt.Equal(mb.OccurredAt) {
			return ma.OccurredAt.Before(mb.OccurredAt)
		}
		return seqs[idx[a]] < seqs[idx[b]]
	})
	ordered := make([]sharedDomain.OutboxMessage, len(msgs))
	for i, j := range idx {
		ordered[i] = msgs[j]
	}
	return ordered, nil
}

func (r *OutboxRepoPostgres) MarkProcessed(ctx context.Context, id uuid.UUID, dispatchErr error) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox
		 SET processed_at = $1, last_error = $2, attempts = attempts + 1, next_attempt_at = NULL, locked_until = NULL
		 WHERE id = $3 AND processed_at IS NULL`,
		r.clock.Now(), nullableError(dispatchErr), id,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, id)
}

func (r *OutboxRepoPostgres) ScheduleRetry(ctx context.Context, id uuid.UUID, dispatchErr error, nextAttemptAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox
		 SET last_error = $1, attempts = attempts + 1, next_attempt_at = $2, locked_until = NULL
		 WHERE id = $3 AND processed_at IS NULL`,
		nullableError(dispatchErr), nextAttemptAt, id,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res, id)
}

// ------------------ Inspección ------------------

func (r *OutboxRepoPostgres) Summary(ctx context.Context) (sharedDomain.OutboxSummary, error) {
	var s sharedDomain.OutboxSummary
	var oldest sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE processed_at IS NULL),
			COUNT(*) FILTER (WHERE processed_at IS NULL AND attempts > 0),
			COUNT(*) FILTER (WHERE processed_at IS NOT NULL AND last_error IS NOT NULL),
			COUNT(*) FILTER (WHERE processed_at IS NOT NULL AND last_error IS NULL),
			MIN(occurred_at) FILTER (WHERE processed_at IS NULL)
		FROM outbox`,
	).Scan(&s.Pending, &s.Retrying, &s.DeadLettered, &s.Processed, &oldest)
	if err != nil {
		return s, err
	}
	if oldest.Valid {
		t := oldest.Time.UTC()
		s.OldestPendingAt = &t
	}
	return s, nil
}

func (r *OutboxRepoPostgres) ListFailed(ctx context.Context, limit int) ([]sharedDomain.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+outboxColumns+`
		 FROM outbox
		 WHERE processed_at IS NOT NULL AND last_error IS NOT NULL
		 ORDER BY processed_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs, _, err := scanMessages(rows)
	return msgs, err
}

func (r *OutboxRepoPostgres) Requeue(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox
		 SET processed_at = NULL, attempts = 0, next_attempt_at = NULL, locked_until = NULL
		 WHERE id = $1 AND processed_at IS NOT NULL AND last_error IS NOT NULL`,
		id,
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
func (r *OutboxRepoPostgres) requeueMiss(ctx context.Context, id uuid.UUID) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE id = $1`, id).Scan(&n); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFound, id)
	}
	return fmt.Errorf("%w: %s", sharedDomain.ErrOutboxMessageNotFailed, id)
}

// ------------------ Helpers ------------------

func scanMessages(rows *sql.Rows) ([]sharedDomain.OutboxMessage, []int64, error) {
	var (
		msgs []sharedDomain.OutboxMessage
		seqs []int64
	)
	for rows.Next() {
		var (
			msg          sharedDomain.OutboxMessage
			payloadBytes []byte // JSONB
			processedAt  sql.NullTime
			lastError    sql.NullString
			nextAttempt  sql.NullTime
			seq          int64
		)
		if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &payloadBytes,
			&msg.OccurredAt, &processedAt, &lastError, &msg.Attempts, &nextAttempt, &seq); err != nil {
			return nil, nil, err
		}
		msg.Payload = payloadBytes
		msg.OccurredAt = msg.OccurredAt.UTC()
		msg.LastError = lastError.String
		if processedAt.Valid {
			t := processedAt.Time.UTC()
			msg.ProcessedAt = &t
		}
		if nextAttempt.Valid {
			t := nextAttempt.Time.UTC()
			msg.NextAttemptAt = &t
		}
		msgs = append(msgs, msg)
		seqs = append(seqs, seq)
	}
	return msgs, seqs, rows.Err()
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
	_ sharedDomain.OutboxStore     = (*OutboxRepoPostgres)(nil)
	_ sharedDomain.OutboxInspector = (*OutboxRepoPostgres)(nil)
	_ sqldb.OutboxWriter           = (*OutboxRepoPostgres)(nil)
)
