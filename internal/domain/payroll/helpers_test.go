package payroll

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var january2024 = Period{Year: 2024, Month: time.January}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func defaultParams(t *testing.T) Parameters {
	t.Helper()
	return NewEngine().LoadSnapshot(context.Background(), "", january2024).Params
}

func baseInput(id string, salary string) EmployeePeriodInput {
	return EmployeePeriodInput{
		EmployeeID:       id,
		Period:           january2024,
		BaseSalary:       dec(salary),
		DaysWorked:       dec("26"),
		MaritalStatus:    MaritalSingle,
		EmploymentStatus: EmploymentPermanent,
	}
}

// catalogWith copies the default catalog, applying edit to each definition;
// returning false drops the definition.
func catalogWith(t *testing.T, edit func(*Definition) bool) *MemoryCatalog {
	t.Helper()
	base := DefaultCatalog()
	var defs []Definition
	for _, code := range base.Codes() {
		def, _ := base.Lookup(code)
		if edit(&def) {
			defs = append(defs, def)
		}
	}
	catalog, err := NewMemoryCatalog(defs...)
	require.NoError(t, err)
	return catalog
}

func findLine(lines []Line, code string) (Line, bool) {
	for _, line := range lines {
		if line.Code == code {
			return line, true
		}
	}
	return Line{}, false
}

func hasWarning(warnings []Warning, code string) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
