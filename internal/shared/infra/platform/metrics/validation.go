package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation cuenta veredictos del motor de reglas y fallos internos de reglas.
type Validation struct {
	verdicts   *prometheus.CounterVec
	ruleFaults *prometheus.CounterVec
}

func NewValidation(reg prometheus.Registerer) *Validation {
	f := promauto.With(reg)
	return &Validation{
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "customsflow_declaration_validations_total",
			Help: "Declaration validations by verdict",
		}, []string{"valid"}),
		ruleFaults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "customsflow_declaration_rule_faults_total",
			Help: "Rule evaluations that failed internally and were reported as validation errors",
		}, []string{"rule_code"}),
	}
}

func (m *Validation) ObserveVerdict(valid bool) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

func (m *Validation) IncrementRuleFault(ruleCode string) {
	if m == nil {
		return
	}
	m.ruleFaults.WithLabelValues(ruleCode).Inc()
}
