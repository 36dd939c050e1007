package payroll

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation           = errors.New("invalid payroll input")
	ErrUnknownPayLine       = errors.New("unknown pay line")
	ErrParameterUnavailable = errors.New("payroll parameter unavailable")
	ErrParameterNotFound    = errors.New("payroll parameter not found")
	ErrInvariantViolation   = errors.New("payroll arithmetic invariant violated")
	ErrInvalidBrackets      = errors.New("invalid tax bracket table")
	ErrCatalogUnavailable   = errors.New("pay-line catalog unavailable")
	ErrNegativeEarning      = errors.New("earning line resolved to a negative amount")
	ErrCircularBase         = errors.New("earning line cannot use an aggregate base")
	ErrEngineOwnedLine      = errors.New("line is computed by the contribution or tax engine")
)

// ValidationError identifies the input field that was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

type UnknownPayLineError struct {
	Code string
}

func (e *UnknownPayLineError) Error() string {
	return fmt.Sprintf("unknown pay line %q", e.Code)
}

func (e *UnknownPayLineError) Unwrap() error {
	return ErrUnknownPayLine
}

// ParameterUnavailableError is logged and replaced by the documented default;
// callers of the engine never receive it.
type ParameterUnavailableError struct {
	Code string
	Err  error
}

func (e *ParameterUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parameter %s unavailable", e.Code)
	}
	return fmt.Sprintf("parameter %s unavailable: %v", e.Code, e.Err)
}

func (e *ParameterUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParameterUnavailable}
	}
	return []error{ErrParameterUnavailable, e.Err}
}

// InvariantViolationError aborts a single computation.
type InvariantViolationError struct {
	EmployeeID string
	Expected   decimal.Decimal
	Actual     decimal.Decimal
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("net pay reconciliation failed for %s: expected %s, got %s",
		e.EmployeeID, e.Expected.String(), e.Actual.String())
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}
