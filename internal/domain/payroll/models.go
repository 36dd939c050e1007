package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode is the closed set of computation modes a pay line can use.
type Mode interface {
	modeName() string
}

// Manual lines take their amount from entered lines or fixed charges only.
type Manual struct{}

// Fixed lines carry a constant amount per period (allowances, levies).
type Fixed struct {
	Amount decimal.Decimal
}

// Rate lines apply a percentage to a named base. The rate and ceiling are
// late-bound from <CODE>_RATE and <CODE>_CEILING; Rate is the fallback.
type Rate struct {
	Rate *decimal.Decimal
	Base RateBase
}

type Formula struct {
	Ref FormulaRef
}

func (Manual) modeName() string  { return "manual" }
func (Fixed) modeName() string   { return "fixed" }
func (Rate) modeName() string    { return "rate" }
func (Formula) modeName() string { return "formula" }

// ModeName returns the catalog spelling of a mode.
func ModeName(m Mode) string {
	if m == nil {
		return ""
	}
	return m.modeName()
}

// Definition is a read-only catalog entry.
type Definition struct {
	Code            string
	Label           string
	Category        Category
	BaseDescription string
	Mode            Mode
	Taxable         bool
	Social          bool
	Active          bool
}

func (d Definition) formula() (FormulaRef, bool) {
	f, ok := d.Mode.(Formula)
	if !ok {
		return "", false
	}
	return f.Ref, true
}

// withholdsEarnings reports whether lines of this definition are resolved with
// the earnings and reduce the bases instead of net pay directly.
func (d Definition) withholdsEarnings() bool {
	ref, ok := d.formula()
	return ok && ref == FormulaAbsence && d.Category.IsDeduction()
}

// Line is one computed pay-line occurrence on a bulletin.
type Line struct {
	Code        string           `json:"code"`
	Label       string           `json:"label"`
	Category    Category         `json:"category"`
	Amount      decimal.Decimal  `json:"amount"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	AppliedRate *decimal.Decimal `json:"appliedRate,omitempty"`
	BaseAmount  *decimal.Decimal `json:"baseAmount,omitempty"`
	Social      bool             `json:"social"`
	Taxable     bool             `json:"taxable"`
	Withholding bool             `json:"withholding,omitempty"`
	Source      Source           `json:"source"`
}

type EnteredLine struct {
	Code   string
	Amount decimal.Decimal
	Hours  *decimal.Decimal
}

// FixedCharge is a recurring per-employee amount that overrides the catalog
// computation of a code while active.
type FixedCharge struct {
	Code   string
	Amount decimal.Decimal
	Active bool
}

// EmployeePeriodInput holds everything the engine needs for one employee and
// one period. Build it with InputPayload.ToInput.
type EmployeePeriodInput struct {
	EmployeeID             string
	OrganizationID         string
	Period                 Period
	BaseSalary             decimal.Decimal
	SeniorityYears         int
	SeniorityMonths        int
	DaysWorked             decimal.Decimal
	EnteredLines           []EnteredLine
	FixedCharges           []FixedCharge
	DeductibleCharges      *decimal.Decimal
	BenefitsInKind         decimal.Decimal
	FamilyQuotientOverride *decimal.Decimal
	MaritalStatus          MaritalStatus
	ChildrenCount          int
	EmploymentStatus       EmploymentStatus
}

// entered returns the summed amount and hours entered for code.
func (in EmployeePeriodInput) entered(code string) (amount decimal.Decimal, hours *decimal.Decimal, ok bool) {
	for _, line := range in.EnteredLines {
		if line.Code != code {
			continue
		}
		ok = true
		amount = amount.Add(line.Amount)
		if line.Hours != nil {
			sum := line.Hours.Copy()
			if hours != nil {
				sum = sum.Add(*hours)
			}
			hours = &sum
		}
	}
	return amount, hours, ok
}

func (in EmployeePeriodInput) fixedCharge(code string) (decimal.Decimal, bool) {
	for _, charge := range in.FixedCharges {
		if charge.Code == code && charge.Active {
			return charge.Amount, true
		}
	}
	return decimal.Zero, false
}

type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Earnings struct {
	Lines           []Line          `json:"lines"`
	SocialBaseTotal decimal.Decimal `json:"socialBaseTotal"`
	FiscalBaseTotal decimal.Decimal `json:"fiscalBaseTotal"`
	NonTaxableTotal decimal.Decimal `json:"nonTaxableTotal"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
}

type MandatoryContributions struct {
	Lines     []Line          `json:"lines"`
	Social    decimal.Decimal `json:"social"`
	Health    decimal.Decimal `json:"health"`
	IncomeTax decimal.Decimal `json:"incomeTax"`
	Total     decimal.Decimal `json:"total"`
}

type OtherDeductions struct {
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type Deductions struct {
	MandatoryContributions MandatoryContributions `json:"mandatoryContributions"`
	OtherDeductions        OtherDeductions        `json:"otherDeductions"`
	Total                  decimal.Decimal        `json:"total"`
}

type EmployerContributions struct {
	Social            decimal.Decimal `json:"social"`
	FamilyAllowance   decimal.Decimal `json:"familyAllowance"`
	WorkAccident      decimal.Decimal `json:"workAccident"`
	UniqueTaxSocial   decimal.Decimal `json:"uniqueTaxSocial"`
	UniqueTaxTreasury decimal.Decimal `json:"uniqueTaxTreasury"`
	Total             decimal.Decimal `json:"total"`
}

// Bulletin is the immutable payslip produced for one employee and period.
type Bulletin struct {
	ID                    string                `json:"id"`
	EmployeeID            string                `json:"employeeId"`
	OrganizationID        string                `json:"organizationId"`
	Period                Period                `json:"period"`
	ComputedAt            time.Time             `json:"computedAt"`
	Earnings              Earnings              `json:"earnings"`
	Deductions            Deductions            `json:"deductions"`
	EmployerContributions EmployerContributions `json:"employerContributions"`
	RoundingAdjustment    decimal.Decimal       `json:"roundingAdjustment"`
	NetPay                decimal.Decimal       `json:"netPay"`
	EmployerTotalCost     decimal.Decimal       `json:"employerTotalCost"`
	IncomeTax             IncomeTax             `json:"incomeTax"`
	Warnings              []Warning             `json:"warnings,omitempty"`
}

// AllLines returns earnings, mandatory and other deduction lines in bulletin order.
func (b Bulletin) AllLines() []Line {
	out := make([]Line, 0, len(b.Earnings.Lines)+len(b.Deductions.MandatoryContributions.Lines)+len(b.Deductions.OtherDeductions.Lines))
	out = append(out, b.Earnings.Lines...)
	out = append(out, b.Deductions.MandatoryContributions.Lines...)
	out = append(out, b.Deductions.OtherDeductions.Lines...)
	return out
}

// Failure reports one employee a batch could not compute.
type Failure struct {
	EmployeeID string `json:"employeeId"`
	Reason     string `json:"reason"`
	Err        error  `json:"-"`
}

type BatchResult struct {
	Succeeded []Bulletin `json:"succeeded"`
	Failed    []Failure  `json:"failed"`
}
