package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davicafu/customsflow/internal/receipt/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/google/uuid"
)

type ReceiptRepoSQL struct {
	db      *sql.DB
	dialect sqldb.Dialect
}

var _ domain.ReceiptRepository = (*ReceiptRepoSQL)(nil)

func NewReceiptRepoSQL(db *sql.DB, dialect sqldb.Dialect) *ReceiptRepoSQL {
	return &ReceiptRepoSQL{db: db, dialect: dialect}
}

// Save inserta la recepción y sus líneas. Las recepciones no se modifican.
func (r *ReceiptRepoSQL) Save(ctx context.Context, rc *domain.Receipt) error {
	conn := sqldb.Conn(ctx, r.db)

	var declID interface{}
	if rc.DeclarationID != nil {
		declID = rc.DeclarationID.String()
	}
	if _, err := conn.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO receipts (id, warehouse_code, declaration_id, received_at) VALUES (?,?,?,?)`),
		rc.ID.String(), rc.WarehouseCode, declID, rc.ReceivedAt,
	); err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	for _, l := range rc.Lines {
		if _, err := conn.ExecContext(ctx, r.dialect.Rebind(
			`INSERT INTO receipt_lines (receipt_id, line_no, product_code, quantity, unit) VALUES (?,?,?,?,?)`),
			rc.ID.String(), l.LineNo, l.ProductCode, l.Quantity, l.Unit,
		); err != nil {
			return fmt.Errorf("failed to insert receipt line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

func (r *ReceiptRepoSQL) FindByID(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	conn := sqldb.Conn(ctx, r.db)

	rc := &domain.Receipt{ID: id}
	var declID sql.NullString
	err := conn.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT warehouse_code, declaration_id, received_at FROM receipts WHERE id = ?`),
		id.String(),
	).Scan(&rc.WarehouseCode, &declID, &rc.ReceivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReceiptNotFound
		}
		return nil, err
	}
	rc.ReceivedAt = rc.ReceivedAt.UTC()
	if declID.Valid {
		parsed, err := uuid.Parse(declID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in DB: %w", err)
		}
		rc.DeclarationID = &parsed
	}

	rows, err := conn.QueryContext(ctx, r.dialect.Rebind(
		`SELECT line_no, product_code, quantity, unit FROM receipt_lines WHERE receipt_id = ? ORDER BY line_no`),
		id.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.LineNo, &l.ProductCode, &l.Quantity, &l.Unit); err != nil {
			return nil, err
		}
		rc.Lines = append(rc.Lines, l)
	}
	return rc, rows.Err()
}
