package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifica cada variante de evento de dominio. El conjunto es cerrado:
// añadir una variante implica añadirla a AllKinds y a Decode.
type Kind string

const (
	KindGuaranteeDebited     Kind = "guarantee.debited"
	KindGuaranteeCredited    Kind = "guarantee.credited"
	KindGuaranteeEntryVoided Kind = "guarantee.entry_voided"
	KindReceiptCreated       Kind = "receipt.created"
	KindDeclarationCreated   Kind = "declaration.created"
	KindCustomsCleared       Kind = "declaration.cleared"
	KindProductionCompleted  Kind = "production.completed"
)

// Tipos de agregado
const (
	AggregateGuarantee   = "guarantee"
	AggregateDeclaration = "declaration"
	AggregateReceipt     = "receipt"
	AggregateProduction  = "production_order"
)

// AllKinds devuelve todas las variantes conocidas, en orden estable.
func AllKinds() []Kind {
	return []Kind{
		KindGuaranteeDebited,
		KindGuaranteeCredited,
		KindGuaranteeEntryVoided,
		KindReceiptCreated,
		KindDeclarationCreated,
		KindCustomsCleared,
		KindProductionCompleted,
	}
}

// DomainEvent es un hecho inmutable ocurrido sobre un agregado.
type DomainEvent interface {
	Kind() Kind
	AggregateType() string
	AggregateID() string
	EventID() uuid.UUID
	OccurredAt() time.Time
	domainEvent()
}

// Meta guarda la identidad del evento y el instante en que ocurrió.
// No forma parte del payload serializado: viaja en las columnas del outbox.
type Meta struct {
	ID uuid.UUID `json:"-"`
	At time.Time `json:"-"`
}

func NewMeta(at time.Time) Meta {
	return Meta{ID: uuid.New(), At: at.UTC()}
}

func (m Meta) EventID() uuid.UUID    { return m.ID }
func (m Meta) OccurredAt() time.Time { return m.At }
func (Meta) domainEvent() {}

func (m *Meta) setMeta(meta Meta) { *m = meta }

// ---------------- Garantías ----------------

type GuaranteeDebited struct {
	Meta
	AccountID uuid.UUID `json:"accountId"`
	EntryID   uuid.UUID `json:"entryId"`
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference"`
	Balance   int64     `json:"balance"`
}

func (GuaranteeDebited) Kind() Kind            { return KindGuaranteeDebited }
func (GuaranteeDebited) AggregateType() string { return AggregateGuarantee }
func (e GuaranteeDebited) AggregateID() string { return e.AccountID.String() }

type GuaranteeCredited struct {
	Meta
	AccountID uuid.UUID `json:"accountId"`
	EntryID   uuid.UUID `json:"entryId"`
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference"`
	Balance   int64     `json:"balance"`
}

func (GuaranteeCredited) Kind() Kind            { return KindGuaranteeCredited }
func (GuaranteeCredited) AggregateType() string { return AggregateGuarantee }
func (e GuaranteeCredited) AggregateID() string { return e.AccountID.String() }

type GuaranteeEntryVoided struct {
	Meta
	AccountID uuid.UUID `json:"accountId"`
	EntryID   uuid.UUID `json:"entryId"`
	Balance   int64     `json:"balance"`
}

func (GuaranteeEntryVoided) Kind() Kind            { return KindGuaranteeEntryVoided }
func (GuaranteeEntryVoided) AggregateType() string { return AggregateGuarantee }
func (e GuaranteeEntryVoided) AggregateID() string { return e.AccountID.String() }

// ---------------- Recepciones ----------------

type ReceiptCreated struct {
	Meta
	ReceiptID     uuid.UUID `json:"receiptId"`
	WarehouseCode string    `json:"warehouseCode"`
	DeclarationID string    `json:"declarationId,omitempty"`
	LineCount     int       `json:"lineCount"`
	TotalQuantity float64   `json:"totalQuantity"`
}

func (ReceiptCreated) Kind() Kind            { return KindReceiptCreated }
func (ReceiptCreated) AggregateType() string { return AggregateReceipt }
func (e ReceiptCreated) AggregateID() string { return e.ReceiptID.String() }

// ---------------- Declaraciones ----------------

type DeclarationCreated struct {
	Meta
	DeclarationID      uuid.UUID `json:"declarationId"`
	DeclarantEORI      string    `json:"declarantEori"`
	ProcedureCode      string    `json:"procedureCode"`
	Currency           string    `json:"currency"`
	GuaranteeAccountID uuid.UUID `json:"guaranteeAccountId"`
	LineCount          int       `json:"lineCount"`
	TotalValue         int64     `json:"totalValue"`
	TotalDuty          int64     `json:"totalDuty"`
}

func (DeclarationCreated) Kind() Kind            { return KindDeclarationCreated }
func (DeclarationCreated) AggregateType() string { return AggregateDeclaration }
func (e DeclarationCreated) AggregateID() string { return e.DeclarationID.String() }

type CustomsCleared struct {
	Meta
	DeclarationID      uuid.UUID `json:"declarationId"`
	MRN                string    `json:"mrn"`
	GuaranteeAccountID uuid.UUID `json:"guaranteeAccountId"`
	TotalDuty          int64     `json:"totalDuty"`
}

func (CustomsCleared) Kind() Kind            { return KindCustomsCleared }
func (CustomsCleared) AggregateType() string { return AggregateDeclaration }
func (e CustomsCleared) AggregateID() string { return e.DeclarationID.String() }

// ---------------- Producción ----------------

type ProductionCompleted struct {
	Meta
	OrderID     uuid.UUID `json:"orderId"`
	ProductCode string    `json:"productCode"`
	PlannedQty  float64   `json:"plannedQty"`
	ProducedQty float64   `json:"producedQty"`
}

func (ProductionCompleted) Kind() Kind            { return KindProductionCompleted }
func (ProductionCompleted) AggregateType() string { return AggregateProduction }
func (e ProductionCompleted) AggregateID() string { return e.OrderID.String() }
