package mocks

import (
	"context"
	"sync"

	declDomain "github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/google/uuid"
)

// InMemoryDeclarationRepo simula DeclarationRepository guardando copias.
type InMemoryDeclarationRepo struct {
	mu    sync.Mutex
	decls map[uuid.UUID]declDomain.Declaration

	// SaveErr hace fallar Save.
	SaveErr error
}

var _ declDomain.DeclarationRepository = (*InMemoryDeclarationRepo)(nil)

func NewInMemoryDeclarationRepo() *InMemoryDeclarationRepo {
	return &InMemoryDeclarationRepo{decls: make(map[uuid.UUID]declDomain.Declaration)}
}

func (r *InMemoryDeclarationRepo) Save(ctx context.Context, d *declDomain.Declaration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.decls[d.ID] = copyDeclaration(d)
	return nil
}

func (r *InMemoryDeclarationRepo) FindByID(ctx context.Context, id uuid.UUID) (*declDomain.Declaration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.decls[id]
	if !ok {
		return nil, declDomain.ErrDeclarationNotFound
	}
	c := copyDeclaration(&d)
	return &c, nil
}

func (r *InMemoryDeclarationRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.decls)
}

func copyDeclaration(d *declDomain.Declaration) declDomain.Declaration {
	lines := make([]declDomain.Line, len(d.Lines))
	copy(lines, d.Lines)
	c := declDomain.Declaration{
		ID:                 d.ID,
		MRN:                d.MRN,
		DeclarantEORI:      d.DeclarantEORI,
		ProcedureCode:      d.ProcedureCode,
		Currency:           d.Currency,
		GuaranteeAccountID: d.GuaranteeAccountID,
		Status:             d.Status,
		Lines:              lines,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.ClearedAt != nil {
		at := *d.ClearedAt
		c.ClearedAt = &at
	}
	return c
}
