package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/guarantee/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/google/uuid"
)

// AccountRepoSQL guarda cuentas y apuntes en SQLite o Postgres. Dentro de una unidad de trabajo
// usa la transacción del contexto.
type AccountRepoSQL struct {
	db      *sql.DB
	dialect sqldb.Dialect
}

var _ domain.AccountRepository = (*AccountRepoSQL)(nil)

func NewAccountRepoSQL(db *sql.DB, dialect sqldb.Dialect) *AccountRepoSQL {
	return &AccountRepoSQL{db: db, dialect: dialect}
}

func (r *AccountRepoSQL) Save(ctx context.Context, acc *domain.Account) error {
	conn := sqldb.Conn(ctx, r.db)

	if _, err := conn.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO guarantee_accounts (id, holder, currency, credit_limit, created_at)
		 VALUES (?,?,?,?,?) ON CONFLICT (id) DO NOTHING`),
		acc.ID.String(), acc.Holder, acc.Currency, acc.CreditLimit, acc.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert guarantee account: %w", err)
	}

	appended, voided := acc.Changes()
	for _, e := range appended {
		// UNIQUE(account_id, seq) rechaza un apunte concurrente con el mismo número.
		if _, err := conn.ExecContext(ctx, r.dialect.Rebind(
			`INSERT INTO guarantee_entries (id, account_id, seq, kind, amount, reference, created_at)
			 VALUES (?,?,?,?,?,?,?)`),
			e.ID.String(), acc.ID.String(), e.Seq, string(e.Kind), e.Amount, e.Reference, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert ledger entry %d: %w", e.Seq, err)
		}
	}

	for _, e := range voided {
		res, err := conn.ExecContext(ctx, r.dialect.Rebind(
			`UPDATE guarantee_entries SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`),
			*e.DeletedAt, e.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to void ledger entry: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return domain.ErrEntryAlreadyVoided
		}
	}

	acc.MarkPersisted()
	return nil
}

func (r *AccountRepoSQL) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	conn := sqldb.Conn(ctx, r.db)

	var (
		holder, currency string
		limit            int64
		createdAt        time.Time
	)
	err := conn.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT holder, currency, credit_limit, created_at FROM guarantee_accounts WHERE id = ?`),
		id.String(),
	).Scan(&holder, &currency, &limit, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, r.dialect.Rebind(
		`SELECT id, seq, kind, amount, reference, created_at, deleted_at
		 FROM guarantee_entries WHERE account_id = ? ORDER BY seq`),
		id.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e         domain.LedgerEntry
			idStr     string
			kind      string
			deletedAt sql.NullTime
		)
		if err := rows.Scan(&idStr, &e.Seq, &kind, &e.Amount, &e.Reference, &e.CreatedAt, &deletedAt); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid UUID in DB: %w", err)
		}
		e.AccountID = id
		e.Kind = domain.EntryKind(kind)
		e.CreatedAt = e.CreatedAt.UTC()
		if deletedAt.Valid {
			at := deletedAt.Time.UTC()
			e.DeletedAt = &at
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return domain.RehydrateAccount(id, holder, currency, limit, createdAt.UTC(), entries), nil
}
