package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------- Errores de dominio ----------
var (
	ErrAccountNotFound        = errors.New("guarantee account not found")
	ErrInvalidAccount         = errors.New("invalid guarantee account")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrGuaranteeLimitExceeded = errors.New("guarantee limit exceeded")
	ErrCreditExceedsBalance   = errors.New("credit exceeds outstanding balance")
	ErrEntryNotFound          = errors.New("ledger entry not found")
	ErrEntryAlreadyVoided     = errors.New("ledger entry already voided")
)

// ---------- Ports ----------

// AccountRepository persiste cuentas y sus apuntes. Save inserta los apuntes nuevos y marca los
// anulados; nunca reescribe un apunte existente. Dos apuntes con el mismo Seq hacen fallar Save.
type AccountRepository interface {
	Save(ctx context.Context, acc *Account) error

	// Debe devolver ErrAccountNotFound si no existe.
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
}

// BalanceView es la proyección de lectura de una cuenta.
type BalanceView struct {
	AccountID   uuid.UUID `json:"accountId"`
	Holder      string    `json:"holder"`
	Currency    string    `json:"currency"`
	CreditLimit int64     `json:"creditLimit"`
	Balance     int64     `json:"balance"`
	Available   *int64    `json:"available,omitempty"`
	EntryCount  int       `json:"entryCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewBalanceView(acc *Account, now time.Time) BalanceView {
	view := BalanceView{
		AccountID:   acc.ID,
		Holder:      acc.Holder,
		Currency:    acc.Currency,
		CreditLimit: acc.CreditLimit,
		Balance:     acc.Balance(),
		EntryCount:  len(acc.entries),
		UpdatedAt:   now.UTC(),
	}
	if available, ok := acc.Available(); ok {
		view.Available = &available
	}
	return view
}

// CacheKey forma la clave de la proyección de una cuenta.
func CacheKey(id uuid.UUID) string {
	return "guarantee:balance:" + id.String()
}
