package domain

import (
	"math"
	"regexp"
	"strings"
	"time"

	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/domain/events"
	"github.com/google/uuid"
)

type Status string

const (
	StatusRegistered Status = "registered"
	StatusCleared    Status = "cleared"
)

// PlaceholderID sustituye a las claves ajenas aún desconocidas en una validación previa.
var PlaceholderID = uuid.MustParse("00000000-0000-4000-8000-000000000000")

// MRN: año (2 dígitos), país (2 letras) y 14 alfanuméricos.
var mrnPattern = regexp.MustCompile(`^\d{2}[A-Z]{2}[A-Z0-9]{14}$`)

// Line es una partida de la declaración. CustomsValue va en unidades menores de la divisa
// y DutyRate es un porcentaje.
type Line struct {
	LineNo        int     `json:"lineNo"`
	TariffCode    string  `json:"tariffCode"`
	Description   string  `json:"description"`
	OriginCountry string  `json:"originCountry"`
	Quantity      float64 `json:"quantity"`
	NetMassKg     float64 `json:"netMassKg"`
	GrossMassKg   float64 `json:"grossMassKg"`
	CustomsValue  int64   `json:"customsValue"`
	DutyRate      float64 `json:"dutyRate"`
}

// DutyAmount = valor · tipo / 100, redondeado a la unidad menor.
func (l Line) DutyAmount() int64 {
	return int64(math.Round(float64(l.CustomsValue) * l.DutyRate / 100))
}

// Draft son los datos de una declaración antes de registrarla.
type Draft struct {
	DeclarantEORI      string    `json:"declarantEori"`
	ProcedureCode      string    `json:"procedureCode"`
	Currency           string    `json:"currency"`
	GuaranteeAccountID uuid.UUID `json:"guaranteeAccountId"`
	Lines              []Line    `json:"lines"`
}

// Declaration es la declaración aduanera (DUA).
type Declaration struct {
	sharedDomain.EventBuffer

	ID                 uuid.UUID
	MRN                string
	DeclarantEORI      string
	ProcedureCode      string
	Currency           string
	GuaranteeAccountID uuid.UUID
	Status             Status
	Lines              []Line
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClearedAt          *time.Time
}

func normalize(d Draft) Draft {
	d.DeclarantEORI = strings.ToUpper(strings.TrimSpace(d.DeclarantEORI))
	d.ProcedureCode = strings.TrimSpace(d.ProcedureCode)
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	lines := make([]Line, len(d.Lines))
	for i, l := range d.Lines {
		l.LineNo = i + 1
		l.TariffCode = strings.TrimSpace(l.TariffCode)
		l.OriginCountry = strings.ToUpper(strings.TrimSpace(l.OriginCountry))
		lines[i] = l
	}
	d.Lines = lines
	return d
}

// NewValidationProjection construye una declaración desechable sólo para validar.
// Las claves ajenas que falten se rellenan con PlaceholderID; no emite eventos.
func NewValidationProjection(d Draft, now time.Time) *Declaration {
	d = normalize(d)
	if d.GuaranteeAccountID == uuid.Nil {
		d.GuaranteeAccountID = PlaceholderID
	}
	return &Declaration{
		ID:                 PlaceholderID,
		DeclarantEORI:      d.DeclarantEORI,
		ProcedureCode:      d.ProcedureCode,
		Currency:           d.Currency,
		GuaranteeAccountID: d.GuaranteeAccountID,
		Status:             StatusRegistered,
		Lines:              d.Lines,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}
}

// NewCandidate prepara la declaración que se va a validar y registrar. Sin placeholders.
func NewCandidate(d Draft, now time.Time) *Declaration {
	d = normalize(d)
	return &Declaration{
		ID:                 uuid.New(),
		DeclarantEORI:      d.DeclarantEORI,
		ProcedureCode:      d.ProcedureCode,
		Currency:           d.Currency,
		GuaranteeAccountID: d.GuaranteeAccountID,
		Status:             StatusRegistered,
		Lines:              d.Lines,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}
}

// Register emite el alta. Sólo debe llamarse con un veredicto de validación favorable.
func (d *Declaration) Register() {
	d.Raise(events.DeclarationCreated{
		Meta:               events.NewMeta(d.CreatedAt),
		DeclarationID:      d.ID,
		DeclarantEORI:      d.DeclarantEORI,
		ProcedureCode:      d.ProcedureCode,
		Currency:           d.Currency,
		GuaranteeAccountID: d.GuaranteeAccountID,
		LineCount:          len(d.Lines),
		TotalValue:         d.TotalValue(),
		TotalDuty:          d.TotalDuty(),
	})
}

// Clear registra el levante con su MRN.
func (d *Declaration) Clear(mrn string, now time.Time) error {
	mrn = strings.ToUpper(strings.TrimSpace(mrn))
	if !mrnPattern.MatchString(mrn) {
		return ErrInvalidMRN
	}
	if d.Status == StatusCleared {
		return ErrAlreadyCleared
	}

	at := now.UTC()
	d.MRN = mrn
	d.Status = StatusCleared
	d.ClearedAt = &at
	d.UpdatedAt = at

	d.Raise(events.CustomsCleared{
		Meta:               events.NewMeta(now),
		DeclarationID:      d.ID,
		MRN:                mrn,
		GuaranteeAccountID: d.GuaranteeAccountID,
		TotalDuty:          d.TotalDuty(),
	})
	return nil
}

func (d *Declaration) TotalValue() int64 {
	var total int64
	for _, l := range d.Lines {
		total += l.CustomsValue
	}
	return total
}

func (d *Declaration) TotalDuty() int64 {
	var total int64
	for _, l := range d.Lines {
		total += l.DutyAmount()
	}
	return total
}
