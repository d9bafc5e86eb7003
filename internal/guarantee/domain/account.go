package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/google/uuid"
)

type EntryKind string

const (
	EntryDebit  EntryKind = "debit"
	EntryCredit EntryKind = "credit"
)

// LedgerEntry es un apunte del libro de la garantía. Una vez creado sólo puede anularse (DeletedAt).
type LedgerEntry struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"accountId"`
	Seq       int        `json:"seq"`
	Kind      EntryKind  `json:"kind"`
	Amount    int64      `json:"amount"`
	Reference string     `json:"reference"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (e LedgerEntry) Active() bool {
	return e.DeletedAt == nil
}

// signed devuelve la contribución del apunte al saldo.
func (e LedgerEntry) signed() int64 {
	if !e.Active() {
		return 0
	}
	if e.Kind == EntryCredit {
		return -e.Amount
	}
	return e.Amount
}

// BalanceOf calcula el saldo dispuesto: débitos menos créditos, ignorando apuntes anulados.
func BalanceOf(entries []LedgerEntry) int64 {
	var balance int64
	for _, e := range entries {
		balance += e.signed()
	}
	return balance
}

// Account es una garantía aduanera. El saldo nunca se almacena: se deriva de los apuntes.
// CreditLimit == 0 significa sin límite.
type Account struct {
	sharedDomain.EventBuffer

	ID          uuid.UUID
	Holder      string
	Currency    string
	CreditLimit int64
	CreatedAt   time.Time

	entries []LedgerEntry

	// cambios pendientes de persistir
	appended []LedgerEntry
	voided   []LedgerEntry
}

func NewAccount(holder, currency string, creditLimit int64, now time.Time) (*Account, error) {
	holder = strings.TrimSpace(holder)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if holder == "" || len(currency) != 3 || creditLimit < 0 {
		return nil, ErrInvalidAccount
	}
	return &Account{
		ID:          uuid.New(),
		Holder:      holder,
		Currency:    currency,
		CreditLimit: creditLimit,
		CreatedAt:   now.UTC(),
	}, nil
}

// RehydrateAccount reconstruye la cuenta desde persistencia. Los apuntes deben venir ordenados por Seq.
func RehydrateAccount(id uuid.UUID, holder, currency string, creditLimit int64, createdAt time.Time, entries []LedgerEntry) *Account {
	return &Account{
		ID:          id,
		Holder:      holder,
		Currency:    currency,
		CreditLimit: creditLimit,
		CreatedAt:   createdAt,
		entries:     entries,
	}
}

// Entries devuelve una copia de los apuntes, incluidos los anulados.
func (a *Account) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

func (a *Account) Balance() int64 {
	return BalanceOf(a.entries)
}

// Available devuelve el margen restante; ok es false si la cuenta no tiene límite.
func (a *Account) Available() (available int64, ok bool) {
	if a.CreditLimit == 0 {
		return 0, false
	}
	return a.CreditLimit - a.Balance(), true
}

// Outstanding devuelve lo que queda dispuesto bajo una referencia.
func (a *Account) Outstanding(reference string) int64 {
	var total int64
	for _, e := range a.entries {
		if e.Reference == reference {
			total += e.signed()
		}
	}
	return total
}

// Debit dispone amount de la garantía.
func (a *Account) Debit(amount int64, reference string, now time.Time) (LedgerEntry, error) {
	if amount <= 0 {
		return LedgerEntry{}, ErrInvalidAmount
	}
	balance := a.Balance() + amount
	if a.CreditLimit > 0 && balance > a.CreditLimit {
		return LedgerEntry{}, ErrGuaranteeLimitExceeded
	}

	entry := a.append(EntryDebit, amount, reference, now)
	a.Raise(events.GuaranteeDebited{
		Meta:      events.NewMeta(now),
		AccountID: a.ID,
		EntryID:   entry.ID,
		Amount:    amount,
		Reference: reference,
		Balance:   balance,
	})
	return entry, nil
}

// Credit devuelve amount a la garantía. No puede superar el saldo dispuesto.
func (a *Account) Credit(amount int64, reference string, now time.Time) (LedgerEntry, error) {
	if amount <= 0 {
		return LedgerEntry{}, ErrInvalidAmount
	}
	balance := a.Balance() - amount
	if balance < 0 {
		return LedgerEntry{}, ErrCreditExceedsBalance
	}

	entry := a.append(EntryCredit, amount, reference, now)
	a.Raise(events.GuaranteeCredited{
		Meta:      events.NewMeta(now),
		AccountID: a.ID,
		EntryID:   entry.ID,
		Amount:    amount,
		Reference: reference,
		Balance:   balance,
	})
	return entry, nil
}

// Release abona lo pendiente de una referencia. released es false si no quedaba nada,
// lo que hace la liberación idempotente.
func (a *Account) Release(reference string, now time.Time) (entry LedgerEntry, released bool, err error) {
	outstanding := a.Outstanding(reference)
	if outstanding <= 0 {
		return LedgerEntry{}, false, nil
	}
	entry, err = a.Credit(outstanding, reference, now)
	if err != nil {
		return LedgerEntry{}, false, err
	}
	return entry, true, nil
}

// VoidEntry anula un apunte (borrado lógico). Es la única mutación permitida sobre un apunte.
func (a *Account) VoidEntry(entryID uuid.UUID, now time.Time) error {
	idx := -1
	for i, e := range a.entries {
		if e.ID == entryID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrEntryNotFound
	}
	if !a.entries[idx].Active() {
		return ErrEntryAlreadyVoided
	}

	balance := a.Balance() - a.entries[idx].signed()
	if balance < 0 {
		return ErrCreditExceedsBalance
	}
	if a.CreditLimit > 0 && balance > a.CreditLimit {
		return ErrGuaranteeLimitExceeded
	}

	at := now.UTC()
	a.entries[idx].DeletedAt = &at
	a.voided = append(a.voided, a.entries[idx])

	a.Raise(events.GuaranteeEntryVoided{
		Meta:      events.NewMeta(now),
		AccountID: a.ID,
		EntryID:   entryID,
		Balance:   balance,
	})
	return nil
}

func (a *Account) append(kind EntryKind, amount int64, reference string, now time.Time) LedgerEntry {
	entry := LedgerEntry{
		ID:        uuid.New(),
		AccountID: a.ID,
		Seq:       len(a.entries) + 1,
		Kind:      kind,
		Amount:    amount,
		Reference: reference,
		CreatedAt: now.UTC(),
	}
	a.entries = append(a.entries, entry)
	a.appended = append(a.appended, entry)
	return entry
}

// Changes devuelve los apuntes nuevos y los anulados desde la carga.
func (a *Account) Changes() (appended, voided []LedgerEntry) {
	return a.appended, a.voided
}

// MarkPersisted olvida los cambios pendientes una vez escritos.
func (a *Account) MarkPersisted() {
	a.appended = nil
	a.voided = nil
}
