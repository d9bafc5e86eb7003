package validation

import (
	"context"
	"fmt"
	"sort"

	"github.com/davicafu/customsflow/internal/declaration/domain"
	sharedDomain "github.com/davicafu/customsflow/internal/shared/domain"
	"github.com/davicafu/customsflow/internal/shared/infra/platform/metrics"
	"go.uber.org/zap"
)

// Rule es una comprobación independiente sobre una declaración.
// Validate devuelve error sólo ante un fallo interno (p. ej. datos de referencia no disponibles);
// los problemas de la declaración van en el RuleResult.
type Rule interface {
	Code() string
	Priority() int
	Validate(ctx context.Context, d *domain.Declaration) (RuleResult, error)
}

// Engine ejecuta todas las reglas sobre una declaración. No corta ante el primer fallo
// y un fallo interno de una regla se convierte en error de validación de esa regla.
// No guarda estado entre llamadas.
type Engine struct {
	rules   []Rule
	clock   sharedDomain.Clock
	metrics *metrics.Validation
	log     *zap.Logger
}

// NewEngine ordena las reglas por prioridad ascendente (a igual prioridad, por código).
func NewEngine(rules []Rule, clock sharedDomain.Clock, m *metrics.Validation, log *zap.Logger) *Engine {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority() != sorted[j].Priority() {
			return sorted[i].Priority() < sorted[j].Priority()
		}
		return sorted[i].Code() < sorted[j].Code()
	})
	return &Engine{
		rules:   sorted,
		clock:   clock,
		metrics: m,
		log:     log,
	}
}

// Rules devuelve los códigos en orden de ejecución.
func (e *Engine) Rules() []string {
	codes := make([]string, len(e.rules))
	for i, r := range e.rules {
		codes[i] = r.Code()
	}
	return codes
}

// Validate ejecuta las reglas una a una en orden de prioridad y devuelve siempre un
// resultado por regla registrada.
func (e *Engine) Validate(ctx context.Context, d *domain.Declaration) Result {
	results := make([]RuleResult, 0, len(e.rules))
	for _, rule := range e.rules {
		results = append(results, e.run(ctx, rule, d))
	}

	res := aggregate(results, e.clock.Now())
	e.metrics.ObserveVerdict(res.IsValid)
	return res
}

func (e *Engine) run(ctx context.Context, rule Rule, d *domain.Declaration) (res RuleResult) {
	defer func() {
		if p := recover(); p != nil {
			res = e.fault(rule, fmt.Errorf("panic: %v", p))
		}
	}()

	res, err := rule.Validate(ctx, d)
	if err != nil {
		return e.fault(rule, err)
	}

	// El engine fija la identidad y la validez para que el resultado sea coherente.
	res.RuleCode = rule.Code()
	res.Priority = rule.Priority()
	for i := range res.Errors {
		res.Errors[i].RuleCode = rule.Code()
	}
	for i := range res.Warnings {
		res.Warnings[i].RuleCode = rule.Code()
	}
	res.Valid = len(res.Errors) == 0
	return res
}

func (e *Engine) fault(rule Rule, err error) RuleResult {
	e.metrics.IncrementRuleFault(rule.Code())
	e.log.Warn("⚠️ Fallo interno en regla de validación",
		zap.String("rule_code", rule.Code()),
		zap.Error(err),
	)
	res := RuleResult{RuleCode: rule.Code(), Priority: rule.Priority()}
	res.AddError("", fmt.Sprintf("rule could not be evaluated: %v", err))
	return res
}
