package payroll

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultWorkingDays       = 26
	defaultRoundingIncrement = 1000
)

var hundred = decimal.NewFromInt(100)

// TaxBracket is one slice of the progressive schedule. Rate is a percentage;
// a nil Upper means the bracket is unbounded.
type TaxBracket struct {
	Lower decimal.Decimal  `json:"lower" toml:"lower"`
	Upper *decimal.Decimal `json:"upper,omitempty" toml:"upper"`
	Rate  decimal.Decimal  `json:"rate" toml:"rate"`
}

// ValidateBrackets checks the table is ordered, gapless, starts at zero and
// ends with an unbounded bracket.
func ValidateBrackets(brackets []TaxBracket) error {
	if len(brackets) == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidBrackets)
	}
	if !brackets[0].Lower.IsZero() {
		return fmt.Errorf("%w: first bracket must start at 0", ErrInvalidBrackets)
	}
	for i, bracket := range brackets {
		if bracket.Rate.IsNegative() {
			return fmt.Errorf("%w: bracket %d has a negative rate", ErrInvalidBrackets, i)
		}
		last := i == len(brackets)-1
		if bracket.Upper == nil {
			if !last {
				return fmt.Errorf("%w: only the last bracket may be unbounded", ErrInvalidBrackets)
			}
			continue
		}
		if last {
			return fmt.Errorf("%w: last bracket must be unbounded", ErrInvalidBrackets)
		}
		if !bracket.Upper.GreaterThan(bracket.Lower) {
			return fmt.Errorf("%w: bracket %d upper bound must exceed lower bound", ErrInvalidBrackets, i)
		}
		if !brackets[i+1].Lower.Equal(*bracket.Upper) {
			return fmt.Errorf("%w: gap or overlap after bracket %d", ErrInvalidBrackets, i)
		}
	}
	return nil
}

// Parameters is the snapshot of values effective for one organization and
// period. It is built once per batch group and passed to every stage.
type Parameters struct {
	OrganizationID string
	EffectiveDate  time.Time
	Defaulted      []string

	values   map[string]decimal.Decimal
	brackets []TaxBracket
}

func NewParameters(organizationID string, effective time.Time, values map[string]decimal.Decimal, brackets []TaxBracket) Parameters {
	return Parameters{
		OrganizationID: organizationID,
		EffectiveDate:  effective,
		values:         maps.Clone(values),
		brackets:       slices.Clone(brackets),
	}
}

func (p Parameters) Value(code string) (decimal.Decimal, bool) {
	v, ok := p.values[code]
	return v, ok
}

func (p Parameters) ValueOr(code string, fallback decimal.Decimal) decimal.Decimal {
	if v, ok := p.values[code]; ok {
		return v
	}
	return fallback
}

// Percent returns a percentage parameter as a fraction.
func (p Parameters) Percent(code string) (decimal.Decimal, bool) {
	v, ok := p.values[code]
	if !ok {
		return decimal.Zero, false
	}
	return v.Div(hundred), true
}

func (p Parameters) Brackets() []TaxBracket {
	return slices.Clone(p.brackets)
}

func (p Parameters) Codes() []string {
	return slices.Sorted(maps.Keys(p.values))
}

func (p Parameters) WorkingDays() decimal.Decimal {
	days := p.ValueOr(ParamWorkingDays, decimal.Zero)
	if !days.IsPositive() {
		return decimal.NewFromInt(defaultWorkingDays)
	}
	return days
}

// RoundingIncrement falls back to the statutory increment only when the code
// is absent. A configured zero or negative increment disables rounding.
func (p Parameters) RoundingIncrement() decimal.Decimal {
	inc, ok := p.Value(ParamRoundingIncrement)
	if !ok {
		return decimal.NewFromInt(defaultRoundingIncrement)
	}
	if inc.IsNegative() {
		return decimal.Zero
	}
	return inc
}

// ContributionRates holds the contribution parameters with rates as fractions.
type ContributionRates struct {
	SocialCeiling          decimal.Decimal
	SocialEmployeeRate     decimal.Decimal
	SocialEmployerRate     decimal.Decimal
	HealthRate             decimal.Decimal
	HealthThreshold        decimal.Decimal
	FamilyAllowanceRate    decimal.Decimal
	FamilyAllowanceCeiling decimal.Decimal
	WorkAccidentRate       decimal.Decimal
	WorkAccidentCeiling    decimal.Decimal
	UniqueTaxTreasuryRate  decimal.Decimal
	UniqueTaxSocialRate    decimal.Decimal
}

func (p Parameters) ContributionRates() ContributionRates {
	pct := func(code string) decimal.Decimal {
		v, _ := p.Percent(code)
		return v
	}
	return ContributionRates{
		SocialCeiling:          p.ValueOr(ParamSocialCeiling, decimal.Zero),
		SocialEmployeeRate:     pct(ParamSocialEmployeeRate),
		SocialEmployerRate:     pct(ParamSocialEmployerRate),
		HealthRate:             pct(ParamHealthRate),
		HealthThreshold:        p.ValueOr(ParamHealthThreshold, decimal.Zero),
		FamilyAllowanceRate:    pct(ParamFamilyAllowanceRate),
		FamilyAllowanceCeiling: p.ValueOr(ParamFamilyAllowanceCeiling, decimal.Zero),
		WorkAccidentRate:       pct(ParamWorkAccidentRate),
		WorkAccidentCeiling:    p.ValueOr(ParamWorkAccidentCeiling, decimal.Zero),
		UniqueTaxTreasuryRate:  pct(ParamUniqueTaxTreasuryRate),
		UniqueTaxSocialRate:    pct(ParamUniqueTaxSocialRate),
	}
}

// TaxParameters holds what the income-tax engine reads, rates as fractions.
type TaxParameters struct {
	AnnualSocialCeiling decimal.Decimal
	SocialRate          decimal.Decimal
	ProfessionalRate    decimal.Decimal
	Brackets            []TaxBracket
}

func (p Parameters) TaxParameters() TaxParameters {
	social, _ := p.Percent(ParamSocialEmployeeRate)
	professional, _ := p.Percent(ParamProfessionalRate)
	return TaxParameters{
		AnnualSocialCeiling: p.ValueOr(ParamSocialCeiling, decimal.Zero).Mul(months),
		SocialRate:          social,
		ProfessionalRate:    professional,
		Brackets:            p.Brackets(),
	}
}
