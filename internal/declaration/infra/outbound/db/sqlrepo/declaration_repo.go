package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/db/sqldb"
	"github.com/google/uuid"
)

// DeclarationRepoSQL guarda declaraciones y partidas. Las partidas son inmutables:
// sólo se escriben en el alta.
type DeclarationRepoSQL struct {
	db      *sql.DB
	dialect sqldb.Dialect
}

var _ domain.DeclarationRepository = (*DeclarationRepoSQL)(nil)

func NewDeclarationRepoSQL(db *sql.DB, dialect sqldb.Dialect) *DeclarationRepoSQL {
	return &DeclarationRepoSQL{db: db, dialect: dialect}
}

func (r *DeclarationRepoSQL) Save(ctx context.Context, d *domain.Declaration) error {
	conn := sqldb.Conn(ctx, r.db)

	res, err := conn.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO declarations (id, mrn, declarant_eori, procedure_code, currency, guarantee_account_id, status, created_at, updated_at, cleared_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?) ON CONFLICT (id) DO NOTHING`),
		d.ID.String(), nullableString(d.MRN), d.DeclarantEORI, d.ProcedureCode, d.Currency,
		d.GuaranteeAccountID.String(), string(d.Status), d.CreatedAt, d.UpdatedAt, nullableTime(d.ClearedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert declaration: %w", err)
	}

	if created, _ := res.RowsAffected(); created == 0 {
		_, err := conn.ExecContext(ctx, r.dialect.Rebind(
			`UPDATE declarations SET mrn = ?, status = ?, updated_at = ?, cleared_at = ? WHERE id = ?`),
			nullableString(d.MRN), string(d.Status), d.UpdatedAt, nullableTime(d.ClearedAt), d.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update declaration: %w", err)
		}
		return nil
	}

	for _, l := range d.Lines {
		if _, err := conn.ExecContext(ctx, r.dialect.Rebind(
			`INSERT INTO declaration_lines (declaration_id, line_no, tariff_code, description, origin_country, quantity, net_mass_kg, gross_mass_kg, customs_value, duty_rate)
			 VALUES (?,?,?,?,?,?,?,?,?,?)`),
			d.ID.String(), l.LineNo, l.TariffCode, l.Description, l.OriginCountry,
			l.Quantity, l.NetMassKg, l.GrossMassKg, l.CustomsValue, l.DutyRate,
		); err != nil {
			return fmt.Errorf("failed to insert declaration line %d: %w", l.LineNo, err)
		}
	}
	return nil
}

func (r *DeclarationRepoSQL) FindByID(ctx context.Context, id uuid.UUID) (*domain.Declaration, error) {
	conn := sqldb.Conn(ctx, r.db)

	var (
		d         = &domain.Declaration{ID: id}
		mrn       sql.NullString
		guarantee string
		status    string
		clearedAt sql.NullTime
	)
	err := conn.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT mrn, declarant_eori, procedure_code, currency, guarantee_account_id, status, created_at, updated_at, cleared_at
		 FROM declarations WHERE id = ?`),
		id.String(),
	).Scan(&mrn, &d.DeclarantEORI, &d.ProcedureCode, &d.Currency, &guarantee, &status, &d.CreatedAt, &d.UpdatedAt, &clearedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDeclarationNotFound
		}
		return nil, err
	}

	if d.GuaranteeAccountID, err = uuid.Parse(guarantee); err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	d.MRN = mrn.String
	d.Status = domain.Status(status)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	if clearedAt.Valid {
		at := clearedAt.Time.UTC()
		d.ClearedAt = &at
	}

	rows, err := conn.QueryContext(ctx, r.dialect.Rebind(
		`SELECT line_no, tariff_code, description, origin_country, quantity, net_mass_kg, gross_mass_kg, customs_value, duty_rate
		 FROM declaration_lines WHERE declaration_id = ? ORDER BY line_no`),
		id.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.LineNo, &l.TariffCode, &l.Description, &l.OriginCountry,
			&l.Quantity, &l.NetMassKg, &l.GrossMassKg, &l.CustomsValue, &l.DutyRate); err != nil {
			return nil, err
		}
		d.Lines = append(d.Lines, l)
	}
	return d, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
