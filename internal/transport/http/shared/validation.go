// Package shared holds request validation helpers used by the HTTP handlers.
package shared

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"paycore/internal/domain/payroll"
	"paycore/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field issues so that a request reports all of them at
// once instead of the first.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

// Period parses a YYYY-MM month.
func (v *Validator) Period(field, raw string) (payroll.Period, bool) {
	parsed, err := payroll.ParsePeriod(raw)
	if err != nil {
		v.Add(field, "must be a valid month in YYYY-MM format")
		return payroll.Period{}, false
	}
	return parsed, true
}

func (v *Validator) NonNegative(field string, value decimal.Decimal) {
	if value.IsNegative() {
		v.Add(field, "must not be negative")
	}
}

// MaritalStatus normalizes raw; an empty value means single.
func (v *Validator) MaritalStatus(field, raw string) payroll.MaritalStatus {
	status := payroll.MaritalStatus(strings.ToLower(strings.TrimSpace(raw)))
	if status == "" {
		return payroll.MaritalSingle
	}
	if !status.Valid() {
		v.Add(field, "must be one of single, married, divorced, widowed")
	}
	return status
}

func (v *Validator) Children(field string, count int) {
	if count < 0 {
		v.Add(field, "must not be negative")
	}
}

// Issues returns the collected issues ordered by field.
func (v *Validator) Issues() []ValidationIssue {
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		return strings.Compare(a.Field, b.Field)
	})
	return out
}

// Reject writes a validation_error response when issues were collected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if len(v.issues) == 0 {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

// RejectError answers with validation_error when err carries a
// payroll.ValidationError.
func RejectError(w http.ResponseWriter, requestID string, err error) bool {
	var validation *payroll.ValidationError
	if !errors.As(err, &validation) {
		return false
	}
	FailValidation(w, requestID, []ValidationIssue{{Field: validation.Field, Reason: validation.Reason}})
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
