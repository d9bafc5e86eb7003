package referencedata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
)

// SQLCatalog consulta la tabla reference_codes.
type SQLCatalog struct {
	db      *sql.DB
	dialect sqldb.Dialect
}

var _ domain.ReferenceData = (*SQLCatalog)(nil)

func NewSQLCatalog(db *sql.DB, dialect sqldb.Dialect) *SQLCatalog {
	return &SQLCatalog{db: db, dialect: dialect}
}

func (c *SQLCatalog) Contains(ctx context.Context, list domain.CodeList, code string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, c.dialect.Rebind(
		`SELECT COUNT(1) FROM reference_codes WHERE list = ? AND code = ?`),
		string(list), normalizeCode(code),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query reference code: %w", err)
	}
	return n > 0, nil
}

// Seed carga los códigos en una única transacción. Los existentes se ignoran,
// así que puede ejecutarse en cada arranque.
func (c *SQLCatalog) Seed(ctx context.Context, codes Codes) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	stmt := c.dialect.Rebind(`INSERT INTO reference_codes (list, code) VALUES (?,?) ON CONFLICT (list, code) DO NOTHING`)
	for list, values := range codes {
		for _, v := range values {
			res, err := tx.ExecContext(ctx, stmt, string(list), normalizeCode(v))
			if err != nil {
				return 0, fmt.Errorf("failed to seed %s code %q: %w", list, v, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted += int(n)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}
