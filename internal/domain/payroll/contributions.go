package payroll

import "github.com/shopspring/decimal"

type EmployeeContributions struct {
	Social decimal.Decimal `json:"social"`
	Health decimal.Decimal `json:"health"`
	Total  decimal.Decimal `json:"total"`
}

type Contributions struct {
	Employee EmployeeContributions `json:"employee"`
	Employer EmployerContributions `json:"employer"`
}

// ComputeContributions applies the statutory contribution formulas to the
// social base. Amounts are rounded to whole currency units.
func ComputeContributions(socialBase decimal.Decimal, r ContributionRates) Contributions {
	if socialBase.IsNegative() {
		socialBase = decimal.Zero
	}
	capped := capAt(socialBase, r.SocialCeiling)

	employeeSocial := money(capped.Mul(r.SocialEmployeeRate))
	employerSocial := money(capped.Mul(r.SocialEmployerRate))

	healthBase := socialBase.Sub(employeeSocial).Sub(r.HealthThreshold)
	if healthBase.IsNegative() {
		healthBase = decimal.Zero
	}
	health := money(healthBase.Mul(r.HealthRate))

	family := money(capAt(socialBase, r.FamilyAllowanceCeiling).Mul(r.FamilyAllowanceRate))
	accident := money(capAt(socialBase, r.WorkAccidentCeiling).Mul(r.WorkAccidentRate))
	treasury := money(socialBase.Mul(r.UniqueTaxTreasuryRate))
	socialFund := money(socialBase.Mul(r.UniqueTaxSocialRate))

	return Contributions{
		Employee: EmployeeContributions{
			Social: employeeSocial,
			Health: health,
			Total:  employeeSocial.Add(health),
		},
		Employer: EmployerContributions{
			Social:            employerSocial,
			FamilyAllowance:   family,
			WorkAccident:      accident,
			UniqueTaxTreasury: treasury,
			UniqueTaxSocial:   socialFund,
			Total:             decimal.Sum(employerSocial, family, accident, treasury, socialFund),
		},
	}
}

// capAt limits base to ceiling; a non-positive ceiling means uncapped.
func capAt(base, ceiling decimal.Decimal) decimal.Decimal {
	if ceiling.IsPositive() && base.GreaterThan(ceiling) {
		return ceiling
	}
	return base
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
