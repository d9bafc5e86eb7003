package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"
)

// OpenSQLite abre la base y la limita a una conexión: SQLite no admite escrituras
// concurrentes y con ":memory:" cada conexión sería una base distinta.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := `
		PRAGMA foreign_keys=1;
		PRAGMA busy_timeout=5000;
	`
	if _, err := db.ExecContext(ctx, pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set SQLite pragmas: %w", err)
	}
	return db, nil
}

// InitSQLite crea las tablas si no existen.
func InitSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outbox (
			id TEXT PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			occurred_at INTEGER NOT NULL,
			processed_at INTEGER,
			last_error TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			next_attempt_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (processed_at, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS guarantee_accounts (
			id TEXT PRIMARY KEY,
			holder TEXT NOT NULL,
			currency TEXT NOT NULL,
			credit_limit INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS guarantee_entries (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES guarantee_accounts(id),
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			amount INTEGER NOT NULL,
			reference TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			deleted_at DATETIME,
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
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			cleared_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS declaration_lines (
			declaration_id TEXT NOT NULL REFERENCES declarations(id),
			line_no INTEGER NOT NULL,
			tariff_code TEXT NOT NULL,
			description TEXT NOT NULL,
			origin_country TEXT NOT NULL,
			quantity REAL NOT NULL,
			net_mass_kg REAL NOT NULL,
			gross_mass_kg REAL NOT NULL,
			customs_value INTEGER NOT NULL,
			duty_rate REAL NOT NULL,
			PRIMARY KEY (declaration_id, line_no)
		)`,
		`CREATE TABLE IF NOT EXISTS receipts (
			id TEXT PRIMARY KEY,
			warehouse_code TEXT NOT NULL,
			declaration_id TEXT,
			received_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS receipt_lines (
			receipt_id TEXT NOT NULL REFERENCES receipts(id),
			line_no INTEGER NOT NULL,
			product_code TEXT NOT NULL,
			quantity REAL NOT NULL,
			unit TEXT NOT NULL,
			PRIMARY KEY (receipt_id, line_no)
		)`,
		`CREATE TABLE IF NOT EXISTS production_orders (
			id TEXT PRIMARY KEY,
			product_code TEXT NOT NULL,
			planned_qty REAL NOT NULL,
			produced_qty REAL NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS reference_codes (
			list TEXT NOT NULL,
			code TEXT NOT NULL,
			PRIMARY KEY (list, code)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init SQLite schema: %w", err)
		}
	}
	return nil
}
