package validation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var validatedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeRef struct {
	codes map[domain.CodeList]map[string]bool
	err   error
	calls atomic.Int32
}

func newFakeRef() *fakeRef {
	return &fakeRef{codes: map[domain.CodeList]map[string]bool{
		domain.CodeListTariff:   {"85171300": true, "61091000": true},
		domain.CodeListCountry:  {"CN": true, "ES": true, "US": true},
		domain.CodeListCurrency: {"EUR": true, "USD": true},
	}}
}

func (f *fakeRef) Contains(ctx context.Context, list domain.CodeList, code string) (bool, error) {
	f.calls.Add(1)
	if f.err != nil {
		return false, f.err
	}
	return f.codes[list][code], nil
}

func validLine() domain.Line {
	return domain.Line{
		TariffCode:    "8517130000",
		Description:   "Smartphones",
		OriginCountry: "CN",
		Quantity:      100,
		NetMassKg:     20,
		GrossMassKg:   25,
		CustomsValue:  5_000_000,
		DutyRate:      2.5,
	}
}

func validDeclaration(lines ...domain.Line) *domain.Declaration {
	if len(lines) == 0 {
		lines = []domain.Line{validLine()}
	}
	return domain.NewCandidate(domain.Draft{
		DeclarantEORI:      "ESB12345678",
		ProcedureCode:      "4000",
		Currency:           "EUR",
		GuaranteeAccountID: uuid.New(),
		Lines:              lines,
	}, validatedAt)
}

func newEngine(ref domain.ReferenceData, rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules(ref)
	}
	return NewEngine(rules, sharedDomain.ClockFunc(func() time.Time { return validatedAt }), nil, zap.NewNop())
}

func TestEngine_ValidDeclaration(t *testing.T) {
	engine := newEngine(newFakeRef())

	res := engine.Validate(context.Background(), validDeclaration())

	assert.True(t, res.IsValid)
	assert.Len(t, res.Rules, 7)
	assert.Empty(t, res.Errors)
	assert.Equal(t, validatedAt, res.ValidatedAt)
}

func TestEngine_TariffFormatAndDutyRange_TwoErrorsOnePerRule(t *testing.T) {
	// Arrange
	line := validLine()
	line.TariffCode = "8517-13"
	line.DutyRate = 140
	engine := newEngine(newFakeRef())

	// Act
	res := engine.Validate(context.Background(), validDeclaration(line))

	// Assert
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, CodeTariffFormat, res.Errors[0].RuleCode)
	assert.Equal(t, "lines[0].tariffCode", res.Errors[0].Field)
	assert.Equal(t, CodeDutyRange, res.Errors[1].RuleCode)
	assert.Equal(t, "lines[0].dutyRate", res.Errors[1].Field)
	assert.Len(t, res.Rules, 7, "todas las reglas se ejecutan")
}

func TestEngine_ReportsResultsInPriorityOrder(t *testing.T) {
	engine := newEngine(newFakeRef())

	res := engine.Validate(context.Background(), validDeclaration())

	codes := make([]string, len(res.Rules))
	for i, r := range res.Rules {
		codes[i] = r.RuleCode
	}
	want := []string{CodeHeader, CodeTariffFormat, CodeTariffExists, CodeDutyRange, CodeOriginCountry, CodeLineValues, CodeCurrency}
	assert.Equal(t, want, codes)
	assert.Equal(t, want, engine.Rules())
}

type recordingRule struct {
	code     string
	priority int
	calls    *[]string
}

func (r recordingRule) Code() string  { return r.code }
func (r recordingRule) Priority() int { return r.priority }
func (r recordingRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	*r.calls = append(*r.calls, r.code)
	return RuleResult{}, nil
}

func TestEngine_ExecutesRulesInPriorityOrder(t *testing.T) {
	// Arrange: registradas desordenadas, dos con la misma prioridad
	var calls []string
	engine := newEngine(newFakeRef(),
		recordingRule{code: "C", priority: 30, calls: &calls},
		recordingRule{code: "A", priority: 10, calls: &calls},
		recordingRule{code: "B2", priority: 20, calls: &calls},
		recordingRule{code: "B1", priority: 20, calls: &calls},
	)

	// Act
	res := engine.Validate(context.Background(), validDeclaration())

	// Assert
	assert.Equal(t, []string{"A", "B1", "B2", "C"}, calls)
	assert.True(t, res.IsValid)
	assert.Len(t, res.Rules, 4)
}

func TestEngine_IsValidIsConjunctionOfRules(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(d *domain.Declaration)
		valid bool
	}{
		{name: "todo correcto", mut: func(d *domain.Declaration) {}, valid: true},
		{name: "sólo un aviso", mut: func(d *domain.Declaration) { d.Lines[0].DutyRate = 75 }, valid: true},
		{name: "cabecera incorrecta", mut: func(d *domain.Declaration) { d.ProcedureCode = "40" }, valid: false},
		{name: "divisa no aceptada", mut: func(d *domain.Declaration) { d.Currency = "JPY" }, valid: false},
		{name: "masa bruta menor que neta", mut: func(d *domain.Declaration) { d.Lines[0].GrossMassKg = 1 }, valid: false},
		{name: "país desconocido", mut: func(d *domain.Declaration) { d.Lines[0].OriginCountry = "ZZ" }, valid: false},
		{name: "código bien formado pero inexistente", mut: func(d *domain.Declaration) { d.Lines[0].TariffCode = "99999999" }, valid: false},
	}

	engine := newEngine(newFakeRef())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDeclaration()
			tt.mut(d)

			res := engine.Validate(context.Background(), d)

			allValid := true
			for _, r := range res.Rules {
				allValid = allValid && r.Valid
				assert.Equal(t, len(r.Errors) == 0, r.Valid)
			}
			assert.Equal(t, allValid, res.IsValid)
			assert.Equal(t, tt.valid, res.IsValid)
			assert.Len(t, res.Rules, 7)
		})
	}
}

func TestEngine_HighDutyRateIsWarningOnly(t *testing.T) {
	line := validLine()
	line.DutyRate = 75
	engine := newEngine(newFakeRef())

	res := engine.Validate(context.Background(), validDeclaration(line))

	assert.True(t, res.IsValid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, CodeDutyRange, res.Warnings[0].RuleCode)
}

func TestEngine_ReferenceDataFault_IsolatedPerRule(t *testing.T) {
	// Arrange
	ref := newFakeRef()
	ref.err = errors.New("reference db unavailable")
	reg := prometheus.NewRegistry()
	engine := NewEngine(DefaultRules(ref), sharedDomain.ClockFunc(func() time.Time { return validatedAt }), metrics.NewValidation(reg), zap.NewNop())

	// Act
	res := engine.Validate(context.Background(), validDeclaration())

	// Assert
	assert.False(t, res.IsValid)
	assert.Len(t, res.Rules, 7)
	failed := map[string]bool{}
	for _, r := range res.Rules {
		if !r.Valid {
			failed[r.RuleCode] = true
		}
	}
	assert.Equal(t, map[string]bool{CodeTariffExists: true, CodeOriginCountry: true, CodeCurrency: true}, failed)
	for _, e := range res.Errors {
		assert.Contains(t, e.Message, "reference db unavailable")
	}
}

type panickingRule struct{}

func (panickingRule) Code() string  { return "PANIC" }
func (panickingRule) Priority() int { return 15 }
func (panickingRule) Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error) {
	var lines map[int]domain.Line
	lines[0] = d.Lines[0]
	return RuleResult{}, nil
}

func TestEngine_PanickingRuleDoesNotAbortOthers(t *testing.T) {
	ref := newFakeRef()
	rules := append(DefaultRules(ref), panickingRule{})
	engine := newEngine(ref, rules...)

	res := engine.Validate(context.Background(), validDeclaration())

	assert.False(t, res.IsValid)
	require.Len(t, res.Rules, 8)
	assert.Equal(t, "PANIC", res.Rules[1].RuleCode)
	assert.False(t, res.Rules[1].Valid)
	for i, r := range res.Rules {
		if i != 1 {
			assert.True(t, r.Valid, r.RuleCode)
		}
	}
}

func TestTariffExists_SkipsMalformedCodes(t *testing.T) {
	ref := newFakeRef()
	line := validLine()
	line.TariffCode = "ABC"

	res, err := TariffExistsRule{Ref: ref}.Validate(context.Background(), validDeclaration(line))

	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, int32(0), ref.calls.Load())
}

func TestHeaderRule_RequiresLinesAndGuarantee(t *testing.T) {
	d := validDeclaration()
	d.Lines = nil
	d.GuaranteeAccountID = uuid.Nil

	res, err := HeaderRule{}.Validate(context.Background(), d)

	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "guaranteeAccountId", res.Errors[0].Field)
	assert.Equal(t, "lines", res.Errors[1].Field)
}
