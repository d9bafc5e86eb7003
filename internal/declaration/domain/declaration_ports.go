package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------- Errores de dominio ----------
var (
	ErrDeclarationNotFound = errors.New("declaration not found")
	ErrDeclarationInvalid  = errors.New("declaration failed validation")
	ErrAlreadyCleared      = errors.New("declaration already cleared")
	ErrInvalidMRN          = errors.New("invalid MRN")
)

// ---------- Ports ----------

type DeclarationRepository interface {
	// Save inserta o actualiza la cabecera; las partidas sólo se escriben al crear.
	Save(ctx context.Context, d *Declaration) error

	// Debe devolver ErrDeclarationNotFound si no existe.
	FindByID(ctx context.Context, id uuid.UUID) (*Declaration, error)
}

// CodeList identifica una lista de códigos de referencia.
type CodeList string

const (
	CodeListTariff    CodeList = "tariff"
	CodeListCountry   CodeList = "country"
	CodeListCurrency  CodeList = "currency"
	CodeListProcedure CodeList = "procedure"
)

// ReferenceData da acceso de sólo lectura a los datos maestros que consultan las reglas.
type ReferenceData interface {
	Contains(ctx context.Context, list CodeList, code string) (bool, error)
}

// DeclarationView es la proyección de lectura de una declaración.
type DeclarationView struct {
	ID                 uuid.UUID  `json:"id"`
	MRN                string     `json:"mrn,omitempty"`
	DeclarantEORI      string     `json:"declarantEori"`
	Status             Status     `json:"status"`
	Currency           string     `json:"currency"`
	GuaranteeAccountID uuid.UUID  `json:"guaranteeAccountId"`
	LineCount          int        `json:"lineCount"`
	TotalValue         int64      `json:"totalValue"`
	TotalDuty          int64      `json:"totalDuty"`
	ClearedAt          *time.Time `json:"clearedAt,omitempty"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func NewDeclarationView(d *Declaration) DeclarationView {
	return DeclarationView{
		ID:                 d.ID,
		MRN:                d.MRN,
		DeclarantEORI:      d.DeclarantEORI,
		Status:             d.Status,
		Currency:           d.Currency,
		GuaranteeAccountID: d.GuaranteeAccountID,
		LineCount:          len(d.Lines),
		TotalValue:         d.TotalValue(),
		TotalDuty:          d.TotalDuty(),
		ClearedAt:          d.ClearedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func CacheKey(id uuid.UUID) string {
	return "declaration:view:" + id.String()
}
