package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davicafu/customsflow/internal/production/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/google/uuid"
)

type ProductionRepoSQL struct {
	db      *sql.DB
	dialect sqldb.Dialect
}

var _ domain.ProductionOrderRepository = (*ProductionRepoSQL)(nil)

func NewProductionRepoSQL(db *sql.DB, dialect sqldb.Dialect) *ProductionRepoSQL {
	return &ProductionRepoSQL{db: db, dialect: dialect}
}

func (r *ProductionRepoSQL) Save(ctx context.Context, o *domain.ProductionOrder) error {
	var completedAt interface{}
	if o.CompletedAt != nil {
		completedAt = *o.CompletedAt
	}

	_, err := sqldb.Conn(ctx, r.db).ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO production_orders (id, product_code, planned_qty, produced_qty, status, created_at, completed_at)
		 VALUES (?,?,?,?,?,?,?)
		 ON CONFLICT (id) DO UPDATE SET produced_qty = excluded.produced_qty, status = excluded.status, completed_at = excluded.completed_at`),
		o.ID.String(), o.ProductCode, o.PlannedQty, o.ProducedQty, string(o.Status), o.CreatedAt, completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save production order: %w", err)
	}
	return nil
}

func (r *ProductionRepoSQL) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductionOrder, error) {
	o := &domain.ProductionOrder{ID: id}
	var (
		status      string
		completedAt sql.NullTime
	)
	err := sqldb.Conn(ctx, r.db).QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT product_code, planned_qty, produced_qty, status, created_at, completed_at FROM production_orders WHERE id = ?`),
		id.String(),
	).Scan(&o.ProductCode, &o.PlannedQty, &o.ProducedQty, &status, &o.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	o.Status = domain.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	if completedAt.Valid {
		at := completedAt.Time.UTC()
		o.CompletedAt = &at
	}
	return o, nil
}
