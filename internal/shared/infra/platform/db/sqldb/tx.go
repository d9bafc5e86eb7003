package sqldb

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx guarda la transacción en el contexto para que los repositorios la usen.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extrae la transacción del contexto, si existe.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Execer es lo común entre *sql.DB y *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn devuelve la transacción del contexto o, si no hay, la base de datos.
func Conn(ctx context.Context, db *sql.DB) Execer {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}
