package validation

import "time"

// Issue es un error o aviso producido por una regla.
type Issue struct {
	RuleCode string `json:"ruleCode"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// RuleResult es el resultado de una regla. Valid equivale a no tener errores.
type RuleResult struct {
	RuleCode string  `json:"ruleCode"`
	Priority int     `json:"priority"`
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

func (r *RuleResult) AddError(field, message string) {
	r.Errors = append(r.Errors, Issue{RuleCode: r.RuleCode, Field: field, Message: message})
}

func (r *RuleResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, Issue{RuleCode: r.RuleCode, Field: field, Message: message})
}

// Result es el veredicto sobre una declaración: una entrada por regla, en orden de prioridad.
type Result struct {
	IsValid     bool         `json:"isValid"`
	Rules       []RuleResult `json:"rules"`
	Errors      []Issue      `json:"errors"`
	Warnings    []Issue      `json:"warnings"`
	ValidatedAt time.Time    `json:"validatedAt"`
}

// aggregate compone el veredicto. IsValid es exactamente el AND de las reglas.
func aggregate(rules []RuleResult, at time.Time) Result {
	res := Result{
		IsValid:     true,
		Rules:       rules,
		Errors:      []Issue{},
		Warnings:    []Issue{},
		ValidatedAt: at.UTC(),
	}
	for _, r := range rules {
		res.IsValid = res.IsValid && r.Valid
		res.Errors = append(res.Errors, r.Errors...)
		res.Warnings = append(res.Warnings, r.Warnings...)
	}
	return res
}
