package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeContributionsBelowCeiling(t *testing.T) {
	c := ComputeContributions(dec("500000"), defaultParams(t).ContributionRates())

	assertDecimal(t, "20000", c.Employee.Social)
	assertDecimal(t, "0", c.Employee.Health)
	assertDecimal(t, "20000", c.Employee.Total)

	assertDecimal(t, "40000", c.Employer.Social)
	assertDecimal(t, "50175", c.Employer.FamilyAllowance)
	assertDecimal(t, "11250", c.Employer.WorkAccident)
	assertDecimal(t, "20625", c.Employer.UniqueTaxTreasury)
	assertDecimal(t, "16875", c.Employer.UniqueTaxSocial)
	assertDecimal(t, "138925", c.Employer.Total)
}

func TestComputeContributionsAboveCeilings(t *testing.T) {
	c := ComputeContributions(dec("2000000"), defaultParams(t).ContributionRates())

	assertDecimal(t, "48000", c.Employee.Social)
	// (2,000,000 - 48,000 - 500,000) x 0.5%
	assertDecimal(t, "7260", c.Employee.Health)
	assertDecimal(t, "96000", c.Employer.Social)
	assertDecimal(t, "60210", c.Employer.FamilyAllowance)
	assertDecimal(t, "13500", c.Employer.WorkAccident)
	assertDecimal(t, "82500", c.Employer.UniqueTaxTreasury)
	assertDecimal(t, "67500", c.Employer.UniqueTaxSocial)
	assertDecimal(t, "319710", c.Employer.Total)
}

func TestComputeContributionsCeilingIsIdempotent(t *testing.T) {
	rates := defaultParams(t).ContributionRates()
	atCeiling := ComputeContributions(rates.SocialCeiling, rates)
	for _, base := range []string{"1200001", "3000000", "50000000"} {
		above := ComputeContributions(dec(base), rates)
		assert.True(t, above.Employee.Social.Equal(atCeiling.Employee.Social), base)
		assert.True(t, above.Employer.Social.Equal(atCeiling.Employer.Social), base)
	}
}

func TestComputeContributionsEmployerCeilingsAreIdempotent(t *testing.T) {
	rates := defaultParams(t).ContributionRates()
	assertDecimal(t, "600000", rates.FamilyAllowanceCeiling)
	assertDecimal(t, "600000", rates.WorkAccidentCeiling)

	atCeiling := ComputeContributions(dec("600000"), rates)
	assertDecimal(t, "60210", atCeiling.Employer.FamilyAllowance)
	assertDecimal(t, "13500", atCeiling.Employer.WorkAccident)
	for _, base := range []string{"600001", "750000", "1200000", "50000000"} {
		above := ComputeContributions(dec(base), rates)
		assert.True(t, above.Employer.FamilyAllowance.Equal(atCeiling.Employer.FamilyAllowance), base)
		assert.True(t, above.Employer.WorkAccident.Equal(atCeiling.Employer.WorkAccident), base)
	}

	below := ComputeContributions(dec("599000"), rates)
	assert.True(t, below.Employer.FamilyAllowance.LessThan(atCeiling.Employer.FamilyAllowance))
	assert.True(t, below.Employer.WorkAccident.LessThan(atCeiling.Employer.WorkAccident))
}

func TestComputeContributionsNeverNegative(t *testing.T) {
	c := ComputeContributions(dec("-1000"), defaultParams(t).ContributionRates())
	assert.True(t, c.Employee.Total.IsZero())
	assert.True(t, c.Employer.Total.IsZero())
}

func TestComputeContributionsZeroCeilingMeansUncapped(t *testing.T) {
	rates := defaultParams(t).ContributionRates()
	rates.SocialCeiling = decimal.Zero
	c := ComputeContributions(dec("2000000"), rates)
	assertDecimal(t, "80000", c.Employee.Social)
}

func TestRoundingAdjustment(t *testing.T) {
	cases := []struct{ net, increment, want string }{
		{"379880", "1000", "120"},
		{"264495", "1000", "-495"},
		{"264500", "1000", "500"},
		{"380000", "1000", "0"},
		{"-408200", "1000", "200"},
		{"12345", "0", "0"},
		{"12345", "100", "-45"},
	}
	for _, tc := range cases {
		assertDecimal(t, tc.want, RoundingAdjustment(dec(tc.net), dec(tc.increment)), tc.net, tc.increment)
	}
}

func TestAggregate(t *testing.T) {
	lines := []Line{
		{Code: "A", Category: CategoryTaxableEarning, Amount: dec("100"), Taxable: true, Social: true},
		{Code: "B", Category: CategoryTaxableEarning, Amount: dec("40"), Taxable: true},
		{Code: "C", Category: CategoryTaxableEarning, Amount: dec("30"), Social: true},
		{Code: "D", Category: CategoryNonTaxableEarning, Amount: dec("25")},
		{Code: "E", Category: CategoryDeduction, Amount: dec("-10")},
		{Code: "F", Category: CategoryRounding, Amount: dec("5")},
	}
	bases := Aggregate(lines)
	assertDecimal(t, "130", bases.Social)
	assertDecimal(t, "140", bases.Fiscal)
	assertDecimal(t, "25", bases.NonTaxable)
	assertDecimal(t, "165", bases.Gross())
}

func TestAggregateWithholdingReducesBases(t *testing.T) {
	lines := []Line{
		{Code: "A", Category: CategoryTaxableEarning, Amount: dec("520000"), Taxable: true, Social: true},
		{Code: "W", Category: CategoryDeduction, Amount: dec("-120000"), Taxable: true, Social: true, Withholding: true},
		{Code: "D", Category: CategoryNonTaxableEarning, Amount: dec("25000")},
		{Code: "U", Category: CategoryDeduction, Amount: dec("-5000"), Withholding: true},
		{Code: "E", Category: CategoryDeduction, Amount: dec("-10000")},
	}
	bases := Aggregate(lines)
	assertDecimal(t, "400000", bases.Social)
	assertDecimal(t, "400000", bases.Fiscal)
	assertDecimal(t, "20000", bases.NonTaxable)
	assertDecimal(t, "420000", bases.Gross())
}
