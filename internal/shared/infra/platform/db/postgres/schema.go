package postgres

import (
	"context"
	"database/sql"
	"fmt"

	// Driver de PostgreSQL
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres abre el pool a través del driver stdlib de pgx.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open Postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return db, nil
}

// InitPostgres crea el esquema si no existe.
func InitPostgres(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outbox (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ,
			last_error TEXT,
			attempts INT NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMPTZ,
			locked_until TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (occurred_at, seq) WHERE processed_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS guarantee_accounts (
			id TEXT PRIMARY KEY,
			holder TEXT NOT NULL,
			currency TEXT NOT NULL,
			credit_limit BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS guarantee_entries (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES guarantee_accounts(id),
			seq INT NOT NULL,
			kind TEXT NOT NULL,
			amount BIGINT NOT NULL,
			reference TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ,
			UNIQUE (account_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS declarations (
			id TEXT PRIMARY KEY,
			mrn TEXT,
			declarant_eori TEXT NOT NULL,
			procedure_code TEXT NOT NULL,
			currency TEXT NOT NULL,
			guarantee_account_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			cleared_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS declaration_lines (
			declaration_id TEXT NOT NULL REFERENCES declarations(id),
			line_no INT NOT NULL,
			tariff_code TEXT NOT NULL,
			description TEXT NOT NULL,
			origin_country TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			net_mass_kg DOUBLE PRECISION NOT NULL,
			gross_mass_kg DOUBLE PRECISION NOT NULL,
			customs_value BIGINT NOT NULL,
			duty_rate DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (declaration_id, line_no)
		)`,
		`CREATE TABLE IF NOT EXISTS receipts (
			id TEXT PRIMARY KEY,
			warehouse_code TEXT NOT NULL,
			declaration_id TEXT,
			received_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS receipt_lines (
			receipt_id TEXT NOT NULL REFERENCES receipts(id),
			line_no INT NOT NULL,
			product_code TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			unit TEXT NOT NULL,
			PRIMARY KEY (receipt_id, line_no)
		)`,
		`CREATE TABLE IF NOT EXISTS production_orders (
			id TEXT PRIMARY KEY,
			product_code TEXT NOT NULL,
			planned_qty DOUBLE PRECISION NOT NULL,
			produced_qty DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS reference_codes (
			list TEXT NOT NULL,
			code TEXT NOT NULL,
			PRIMARY KEY (list, code)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init Postgres schema: %w", err)
		}
	}
	return nil
}
