package payroll

import (
	"strings"

	"github.com/shopspring/decimal"
)

var maxDaysWorked = decimal.NewFromInt(31)

type EnteredLinePayload struct {
	Code   string           `json:"code" toml:"code"`
	Amount decimal.Decimal  `json:"amount" toml:"amount"`
	Hours  *decimal.Decimal `json:"hours,omitempty" toml:"hours"`
}

type FixedChargePayload struct {
	Code   string          `json:"code" toml:"code"`
	Amount decimal.Decimal `json:"amount" toml:"amount"`
	Active *bool           `json:"active,omitempty" toml:"active"`
}

// InputPayload is the wire shape of an EmployeePeriodInput, shared by the HTTP
// handlers and the paycalc files. Amounts accept JSON numbers or strings.
type InputPayload struct {
	EmployeeID             string               `json:"employeeId" toml:"employee_id"`
	OrganizationID         string               `json:"organizationId" toml:"organization_id"`
	Period                 string               `json:"period" toml:"period"`
	BaseSalary             decimal.Decimal      `json:"baseSalary" toml:"base_salary"`
	SeniorityYears         int                  `json:"seniorityYears" toml:"seniority_years"`
	SeniorityMonths        int                  `json:"seniorityMonths" toml:"seniority_months"`
	DaysWorked             *decimal.Decimal     `json:"daysWorked" toml:"days_worked"`
	EnteredLines           []EnteredLinePayload `json:"enteredLines" toml:"entered_lines"`
	FixedCharges           []FixedChargePayload `json:"fixedCharges" toml:"fixed_charges"`
	DeductibleCharges      *decimal.Decimal     `json:"deductibleCharges,omitempty" toml:"deductible_charges"`
	BenefitsInKind         decimal.Decimal      `json:"benefitsInKind" toml:"benefits_in_kind"`
	FamilyQuotientOverride *decimal.Decimal     `json:"familyQuotientOverride,omitempty" toml:"family_quotient_override"`
	MaritalStatus          string               `json:"maritalStatus" toml:"marital_status"`
	ChildrenCount          int                  `json:"childrenCount" toml:"children_count"`
	EmploymentStatus       string               `json:"employmentStatus" toml:"employment_status"`
}

// ToInput converts the payload and validates the result. A missing daysWorked
// means a full month; missing statuses default to single and permanent.
func (p InputPayload) ToInput() (EmployeePeriodInput, error) {
	period, err := ParsePeriod(p.Period)
	if err != nil {
		return EmployeePeriodInput{}, &ValidationError{Field: "period", Reason: "must be a valid month in YYYY-MM format"}
	}

	days := decimal.NewFromInt(defaultWorkingDays)
	if p.DaysWorked != nil {
		days = *p.DaysWorked
	}
	marital := MaritalStatus(strings.ToLower(strings.TrimSpace(p.MaritalStatus)))
	if marital == "" {
		marital = MaritalSingle
	}
	employment := EmploymentStatus(strings.ToLower(strings.TrimSpace(p.EmploymentStatus)))
	if employment == "" {
		employment = EmploymentPermanent
	}

	in := EmployeePeriodInput{
		EmployeeID:             strings.TrimSpace(p.EmployeeID),
		OrganizationID:         strings.TrimSpace(p.OrganizationID),
		Period:                 period,
		BaseSalary:             p.BaseSalary,
		SeniorityYears:         p.SeniorityYears,
		SeniorityMonths:        p.SeniorityMonths,
		DaysWorked:             days,
		DeductibleCharges:      p.DeductibleCharges,
		BenefitsInKind:         p.BenefitsInKind,
		FamilyQuotientOverride: p.FamilyQuotientOverride,
		MaritalStatus:          marital,
		ChildrenCount:          p.ChildrenCount,
		EmploymentStatus:       employment,
	}
	for _, line := range p.EnteredLines {
		in.EnteredLines = append(in.EnteredLines, EnteredLine{
			Code:   strings.ToUpper(strings.TrimSpace(line.Code)),
			Amount: line.Amount,
			Hours:  line.Hours,
		})
	}
	for _, charge := range p.FixedCharges {
		active := true
		if charge.Active != nil {
			active = *charge.Active
		}
		in.FixedCharges = append(in.FixedCharges, FixedCharge{
			Code:   strings.ToUpper(strings.TrimSpace(charge.Code)),
			Amount: charge.Amount,
			Active: active,
		})
	}
	if err := in.Validate(); err != nil {
		return EmployeePeriodInput{}, err
	}
	return in, nil
}

// Validate rejects inputs the engine cannot compute. It reports the first
// offending field.
func (in EmployeePeriodInput) Validate() error {
	switch {
	case strings.TrimSpace(in.EmployeeID) == "":
		return &ValidationError{Field: "employeeId", Reason: "is required"}
	case !in.Period.Valid():
		return &ValidationError{Field: "period", Reason: "must be a valid month in YYYY-MM format"}
	case !in.BaseSalary.IsPositive():
		return &ValidationError{Field: "baseSalary", Reason: "must be greater than zero"}
	case in.SeniorityYears < 0:
		return &ValidationError{Field: "seniorityYears", Reason: "must not be negative"}
	case in.SeniorityMonths < 0:
		return &ValidationError{Field: "seniorityMonths", Reason: "must not be negative"}
	case in.DaysWorked.IsNegative() || in.DaysWorked.GreaterThan(maxDaysWorked):
		return &ValidationError{Field: "daysWorked", Reason: "must be between 0 and 31"}
	case in.ChildrenCount < 0:
		return &ValidationError{Field: "childrenCount", Reason: "must not be negative"}
	case in.BenefitsInKind.IsNegative():
		return &ValidationError{Field: "benefitsInKind", Reason: "must not be negative"}
	case in.DeductibleCharges != nil && in.DeductibleCharges.IsNegative():
		return &ValidationError{Field: "deductibleCharges", Reason: "must not be negative"}
	case in.FamilyQuotientOverride != nil && !in.FamilyQuotientOverride.IsPositive():
		return &ValidationError{Field: "familyQuotientOverride", Reason: "must be greater than zero"}
	case in.MaritalStatus != "" && !in.MaritalStatus.Valid():
		return &ValidationError{Field: "maritalStatus", Reason: "must be one of single, married, divorced, widowed"}
	case in.EmploymentStatus != "" && !in.EmploymentStatus.Valid():
		return &ValidationError{Field: "employmentStatus", Reason: "must be one of permanent, fixed-term, temporary, intern"}
	}
	for _, line := range in.EnteredLines {
		if strings.TrimSpace(line.Code) == "" {
			return &ValidationError{Field: "enteredLines.code", Reason: "is required"}
		}
		if line.Hours != nil && line.Hours.IsNegative() {
			return &ValidationError{Field: "enteredLines.hours", Reason: "must not be negative"}
		}
	}
	for _, charge := range in.FixedCharges {
		if strings.TrimSpace(charge.Code) == "" {
			return &ValidationError{Field: "fixedCharges.code", Reason: "is required"}
		}
	}
	return nil
}
