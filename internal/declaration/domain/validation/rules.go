package validation

import (
	"context"
	"fmt"
	"regexp"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	"github.com/google/uuid"
)

// Códigos de regla
const (
	CodeHeader        = "DECL_HEADER"
	CodeTariffFormat  = "TARIFF_FORMAT"
	CodeTariffExists  = "TARIFF_EXISTS"
	CodeDutyRange     = "DUTY_RANGE"
	CodeOriginCountry = "ORIGIN_COUNTRY"
	CodeLineValues    = "LINE_VALUES"
	CodeCurrency      = "CURRENCY"
)

// Por encima de este tipo se avisa, sin invalidar.
const highDutyRate = 50.0

var (
	eoriPattern      = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{1,15}$`)
	procedurePattern = regexp.MustCompile(`^\d{4}$`)
	tariffPattern    = regexp.MustCompile(`^\d{8}(\d{2})?$`)
	countryPattern   = regexp.MustCompile(`^[A-Z]{2}$`)
	currencyPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
)

// DefaultRules devuelve el conjunto de reglas de una declaración de importación.
func DefaultRules(ref domain.ReferenceData) []Rule {
	return []Rule{
		HeaderRule{},
		TariffFormatRule{},
		TariffExistsRule{Ref: ref},
		DutyRangeRule{},
		OriginCountryRule{Ref: ref},
		LineValuesRule{},
		CurrencyRule{Ref: ref},
	}
}

func lineField(i int, name string) string {
	return fmt.Sprintf("lines[%d].%s", i, name)
}

// ---------------- DECL_HEADER ----------------

type HeaderRule struct{}

func (HeaderRule) Code() string  { return CodeHeader }
func (HeaderRule) Priority() int { return 10 }

func (r HeaderRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	res := RuleResult{RuleCode: r.Code()}
	if !eoriPattern.MatchString(d.DeclarantEORI) {
		res.AddError("declarantEori", "EORI must be a 2-letter country prefix followed by up to 15 alphanumerics")
	}
	if !procedurePattern.MatchString(d.ProcedureCode) {
		res.AddError("procedureCode", "procedure code must have 4 digits")
	}
	if d.GuaranteeAccountID == uuid.Nil {
		res.AddError("guaranteeAccountId", "a guarantee account is required")
	}
	if len(d.Lines) == 0 {
		res.AddError("lines", "at least one line is required")
	}
	if len(d.Lines) > 999 {
		res.AddError("lines", "a declaration cannot have more than 999 lines")
	}
	return res, nil
}

// ---------------- TARIFF_FORMAT ----------------

// TariffFormatRule exige códigos NC de 8 dígitos o TARIC de 10.
type TariffFormatRule struct{}

func (TariffFormatRule) Code() string  { return CodeTariffFormat }
func (TariffFormatRule) Priority() int { return 20 }

func (r TariffFormatRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	res := RuleResult{RuleCode: r.Code()}
	for i, l := range d.Lines {
		if !tariffPattern.MatchString(l.TariffCode) {
			res.AddError(lineField(i, "tariffCode"), fmt.Sprintf("tariff code %q must have 8 or 10 digits", l.TariffCode))
		}
	}
	return res, nil
}

// ---------------- TARIFF_EXISTS ----------------

// TariffExistsRule comprueba la nomenclatura. Sólo mira códigos bien formados:
// uno mal formado ya lo informa TARIFF_FORMAT.
type TariffExistsRule struct {
	Ref domain.ReferenceData
}

func (TariffExistsRule) Code() string  { return CodeTariffExists }
func (TariffExistsRule) Priority() int { return 30 }

func (r TariffExistsRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	res := RuleResult{RuleCode: r.Code()}
	for i, l := range d.Lines {
		if !tariffPattern.MatchString(l.TariffCode) {
			continue
		}
		// La nomenclatura se consulta a nivel NC (8 dígitos).
		ok, err := r.Ref.Contains(ctx, domain.CodeListTariff, l.TariffCode[:8])
		if err != nil {
			return RuleResult{}, fmt.Errorf("tariff lookup: %w", err)
		}
		if !ok {
			res.AddError(lineField(i, "tariffCode"), fmt.Sprintf("tariff code %s is not in the nomenclature", l.TariffCode))
		}
	}
	return res, nil
}

// ---------------- DUTY_RANGE ----------------

type DutyRangeRule struct{}

func (DutyRangeRule) Code() string  { return CodeDutyRange }
func (DutyRangeRule) Priority() int { return 40 }

func (r DutyRangeRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	res := RuleResult{RuleCode: r.Code()}
	for i, l := range d.Lines {
		switch {
		case l.DutyRate < 0 || l.DutyRate > 100:
			res.AddError(lineField(i, "dutyRate"), fmt.Sprintf("duty rate %.2f%% is outside 0-100", l.DutyRate))
		case l.DutyRate > highDutyRate:
			res.AddWarning(lineField(i, "dutyRate"), fmt.Sprintf("duty rate %.2f%% is unusually high", l.DutyRate))
		}
	}
	return res, nil
}

// ---------------- ORIGIN_COUNTRY ----------------

type OriginCountryRule struct {
	Ref domain.ReferenceData
}

func (OriginCountryRule) Code() string  { return CodeOriginCountry }
func (OriginCountryRule) Priority() int { return 50 }

func (r OriginCountryRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	res := RuleResult{RuleCode: r.Code()}
	for i, l := range d.Lines {
		if !countryPattern.MatchString(l.OriginCountry) {
			res.AddError(lineField(i, "originCountry"), "origin country must be an ISO 3166 alpha-2 code")
			continue
		}
		ok, err := r.Ref.Contains(ctx, domain.CodeListCountry, l.OriginCountry)
		if err != nil {
			return RuleResult{}, fmt.Errorf("country lookup: %w", err)
		}
		if !ok {
			res.AddError(lineField(i, "originCountry"), fmt.Sprintf("unknown origin country %s", l.OriginCountry))
		}
	}
	return res, nil
}

// ---------------- LINE_VALUES ----------------

type LineValuesRule struct{}

func (LineValuesRule) Code() string  { return CodeLineValues }
func (LineValuesRule) Priority() int { return 60 }

func (r LineValuesRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	res := RuleResult{RuleCode: r.Code()}
	for i, l := range d.Lines {
		if l.Quantity <= 0 {
			res.AddError(lineField(i, "quantity"), "quantity must be positive")
		}
		if l.NetMassKg <= 0 {
			res.AddError(lineField(i, "netMassKg"), "net mass must be positive")
		}
		if l.GrossMassKg < l.NetMassKg {
			res.AddError(lineField(i, "grossMassKg"), "gross mass cannot be lower than net mass")
		}
		if l.CustomsValue <= 0 {
			res.AddError(lineField(i, "customsValue"), "customs value must be positive")
		}
		if l.Description == "" {
			res.AddWarning(lineField(i, "description"), "goods description is empty")
		}
	}
	return res, nil
}

// ---------------- CURRENCY ----------------

type CurrencyRule struct {
	Ref domain.ReferenceData
}

func (CurrencyRule) Code() string  { return CodeCurrency }
func (CurrencyRule) Priority() int { return 70 }

func (r CurrencyRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	res := RuleResult{RuleCode: r.Code()}
	if !currencyPattern.MatchString(d.Currency) {
		res.AddError("currency", "currency must be an ISO 4217 code")
		return res, nil
	}
	ok, err := r.Ref.Contains(ctx, domain.CodeListCurrency, d.Currency)
	if err != nil {
		return RuleResult{}, fmt.Errorf("currency lookup: %w", err)
	}
	if !ok {
		res.AddError("currency", fmt.Sprintf("currency %s is not accepted", d.Currency))
	}
	return res, nil
}
