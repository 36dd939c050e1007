package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var months = decimal.NewFromInt(12)

// BracketTax is the share of one bracket in the tax of a single part.
type BracketTax struct {
	Lower   decimal.Decimal  `json:"lower"`
	Upper   *decimal.Decimal `json:"upper,omitempty"`
	Rate    decimal.Decimal  `json:"rate"`
	Taxable decimal.Decimal  `json:"taxable"`
	Tax     decimal.Decimal  `json:"tax"`
}

// IncomeTax is the full IRPP derivation kept on the bulletin for audit.
type IncomeTax struct {
	AnnualRevenue         decimal.Decimal `json:"annualRevenue"`
	SocialDeduction       decimal.Decimal `json:"socialDeduction"`
	ProfessionalDeduction decimal.Decimal `json:"professionalDeduction"`
	DeductibleCharges     decimal.Decimal `json:"deductibleCharges"`
	NetTaxable            decimal.Decimal `json:"netTaxable"`
	Parts                 decimal.Decimal `json:"parts"`
	RevenuePerPart        decimal.Decimal `json:"revenuePerPart"`
	TaxPerPart            decimal.Decimal `json:"taxPerPart"`
	AnnualTax             decimal.Decimal `json:"annualTax"`
	MonthlyTax            decimal.Decimal `json:"monthlyTax"`
	Breakdown             []BracketTax    `json:"breakdown"`
}

// TaxInput is the monthly fiscal situation of one employee.
type TaxInput struct {
	FiscalBase        decimal.Decimal
	BenefitsInKind    decimal.Decimal
	DeductibleCharges decimal.Decimal
	Household         Household
}

// ComputeIncomeTax derives the monthly withholding: annualize, deduct capped
// social contributions and professional expenses, divide by the family parts,
// apply the brackets, multiply back and de-annualize.
func ComputeIncomeTax(in TaxInput, p TaxParameters) (IncomeTax, error) {
	if err := ValidateBrackets(p.Brackets); err != nil {
		return IncomeTax{}, err
	}

	annual := in.FiscalBase.Add(in.BenefitsInKind).Mul(months)
	if annual.IsNegative() {
		annual = decimal.Zero
	}

	socialBase := capAt(annual, p.AnnualSocialCeiling)
	social := socialBase.Mul(p.SocialRate)
	afterSocial := annual.Sub(social)

	professional := afterSocial.Mul(p.ProfessionalRate)
	net := afterSocial.Sub(professional)

	charges := in.DeductibleCharges.Mul(months)
	if charges.IsNegative() {
		charges = decimal.Zero
	}
	net = net.Sub(charges)
	if net.IsNegative() {
		net = decimal.Zero
	}

	parts := in.Household.Parts()
	perPart := net.Div(parts)

	taxPerPart, breakdown := applyBrackets(perPart, p.Brackets)
	annualTax := taxPerPart.Mul(parts)
	monthly := annualTax.Div(months).Round(0)
	if monthly.IsNegative() {
		monthly = decimal.Zero
	}

	return IncomeTax{
		AnnualRevenue:         annual,
		SocialDeduction:       social,
		ProfessionalDeduction: professional,
		DeductibleCharges:     charges,
		NetTaxable:            net,
		Parts:                 parts,
		RevenuePerPart:        perPart,
		TaxPerPart:            taxPerPart,
		AnnualTax:             annualTax,
		MonthlyTax:            monthly,
		Breakdown:             breakdown,
	}, nil
}

// TaxPerPart applies the progressive schedule to a revenue per part.
func TaxPerPart(revenue decimal.Decimal, brackets []TaxBracket) (decimal.Decimal, error) {
	if err := ValidateBrackets(brackets); err != nil {
		return decimal.Zero, fmt.Errorf("tax per part: %w", err)
	}
	tax, _ := applyBrackets(revenue, brackets)
	return tax, nil
}

func applyBrackets(revenue decimal.Decimal, brackets []TaxBracket) (decimal.Decimal, []BracketTax) {
	total := decimal.Zero
	var breakdown []BracketTax
	for _, bracket := range brackets {
		if !revenue.GreaterThan(bracket.Lower) {
			break
		}
		top := revenue
		if bracket.Upper != nil && bracket.Upper.LessThan(revenue) {
			top = *bracket.Upper
		}
		portion := top.Sub(bracket.Lower)
		tax := portion.Mul(bracket.Rate).Div(hundred)
		total = total.Add(tax)
		breakdown = append(breakdown, BracketTax{
			Lower:   bracket.Lower,
			Upper:   bracket.Upper,
			Rate:    bracket.Rate,
			Taxable: portion,
			Tax:     tax,
		})
		if bracket.Upper == nil || !revenue.GreaterThan(*bracket.Upper) {
			break
		}
	}
	return total, breakdown
}
