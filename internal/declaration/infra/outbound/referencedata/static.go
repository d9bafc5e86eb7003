package referencedata

import (
	"context"
	"strings"

	"github.com/davicafu/customsflow/internal/declaration/domain"
)

// Codes agrupa códigos por lista. Es el formato del fichero de carga y de Seed.
type Codes map[domain.CodeList][]string

// StaticCatalog es un catálogo en memoria, inmutable tras construirse.
type StaticCatalog struct {
	lists map[domain.CodeList]map[string]struct{}
}

var _ domain.ReferenceData = (*StaticCatalog)(nil)

func NewStaticCatalog(codes Codes) *StaticCatalog {
	lists := make(map[domain.CodeList]map[string]struct{}, len(codes))
	for list, values := range codes {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[normalizeCode(v)] = struct{}{}
		}
		lists[list] = set
	}
	return &StaticCatalog{lists: lists}
}

func (c *StaticCatalog) Contains(ctx context.Context, list domain.CodeList, code string) (bool, error) {
	_, ok := c.lists[list][normalizeCode(code)]
	return ok, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
