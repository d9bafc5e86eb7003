package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	guaranteeDomain "github.com/davicafu/customsflow/internal/guarantee/domain"
	"github.com/google/uuid"
)

var ErrSeqConflict = errors.New("ledger entry sequence already taken")

type storedAccount struct {
	holder    string
	currency  string
	limit     int64
	createdAt time.Time
	entries   []guaranteeDomain.LedgerEntry
}

// InMemoryAccountRepo simula AccountRepository. Cada FindByID devuelve una copia independiente.
type InMemoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*storedAccount
}

var _ guaranteeDomain.AccountRepository = (*InMemoryAccountRepo)(nil)

func NewInMemoryAccountRepo() *InMemoryAccountRepo {
	return &InMemoryAccountRepo{accounts: make(map[uuid.UUID]*storedAccount)}
}

func (r *InMemoryAccountRepo) Save(ctx context.Context, acc *guaranteeDomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.accounts[acc.ID]
	if !ok {
		st = &storedAccount{holder: acc.Holder, currency: acc.Currency, limit: acc.CreditLimit, createdAt: acc.CreatedAt}
		r.accounts[acc.ID] = st
	}

	appended, voided := acc.Changes()
	for _, e := range appended {
		if e.Seq != len(st.entries)+1 {
			return ErrSeqConflict
		}
		st.entries = append(st.entries, e)
	}
	for _, v := range voided {
		for i := range st.entries {
			if st.entries[i].ID != v.ID {
				continue
			}
			if st.entries[i].DeletedAt != nil {
				return guaranteeDomain.ErrEntryAlreadyVoided
			}
			at := *v.DeletedAt
			st.entries[i].DeletedAt = &at
		}
	}
	acc.MarkPersisted()
	return nil
}

func (r *InMemoryAccountRepo) FindByID(ctx context.Context, id uuid.UUID) (*guaranteeDomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.accounts[id]
	if !ok {
		return nil, guaranteeDomain.ErrAccountNotFound
	}
	entries := make([]guaranteeDomain.LedgerEntry, len(st.entries))
	copy(entries, st.entries)
	for i := range entries {
		if entries[i].DeletedAt != nil {
			at := *entries[i].DeletedAt
			entries[i].DeletedAt = &at
		}
	}
	return guaranteeDomain.RehydrateAccount(id, st.holder, st.currency, st.limit, st.createdAt, entries), nil
}
