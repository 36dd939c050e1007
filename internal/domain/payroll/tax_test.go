package payroll

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIncomeTaxSingleNoChildren(t *testing.T) {
	params := defaultParams(t).TaxParameters()

	tax, err := ComputeIncomeTax(TaxInput{
		FiscalBase: dec("500000"),
		Household:  Household{MaritalStatus: MaritalSingle},
	}, params)
	require.NoError(t, err)

	assertDecimal(t, "6000000", tax.AnnualRevenue)
	assertDecimal(t, "240000", tax.SocialDeduction)
	assertDecimal(t, "1152000", tax.ProfessionalDeduction)
	assertDecimal(t, "4608000", tax.NetTaxable)
	assertDecimal(t, "1", tax.Parts)
	assertDecimal(t, "1201440", tax.AnnualTax)
	assertDecimal(t, "100120", tax.MonthlyTax)

	require.Len(t, tax.Breakdown, 4)
	for i, want := range []string{"4640", "53600", "500000", "643200"} {
		assertDecimal(t, want, tax.Breakdown[i].Tax, "bracket", i)
	}
	assertDecimal(t, "1608000", tax.Breakdown[3].Taxable)
}

func TestComputeIncomeTaxFamilyQuotientLowersTaxPerPart(t *testing.T) {
	params := defaultParams(t).TaxParameters()

	married, err := ComputeIncomeTax(TaxInput{
		FiscalBase: dec("1500000"),
		Household:  Household{MaritalStatus: MaritalMarried, Children: 3},
	}, params)
	require.NoError(t, err)
	single, err := ComputeIncomeTax(TaxInput{
		FiscalBase: dec("1500000"),
		Household:  Household{MaritalStatus: MaritalSingle},
	}, params)
	require.NoError(t, err)

	assertDecimal(t, "3.5", married.Parts)
	assert.True(t, married.TaxPerPart.LessThan(single.TaxPerPart))
	assert.True(t, married.MonthlyTax.LessThan(single.MonthlyTax))
}

func TestComputeIncomeTaxDeductibleChargesAndBenefits(t *testing.T) {
	params := defaultParams(t).TaxParameters()
	plain, err := ComputeIncomeTax(TaxInput{FiscalBase: dec("800000")}, params)
	require.NoError(t, err)

	withCharges, err := ComputeIncomeTax(TaxInput{FiscalBase: dec("800000"), DeductibleCharges: dec("50000")}, params)
	require.NoError(t, err)
	assertDecimal(t, "600000", withCharges.DeductibleCharges)
	assert.True(t, withCharges.MonthlyTax.LessThan(plain.MonthlyTax))

	withBenefits, err := ComputeIncomeTax(TaxInput{FiscalBase: dec("800000"), BenefitsInKind: dec("50000")}, params)
	require.NoError(t, err)
	assertDecimal(t, "10200000", withBenefits.AnnualRevenue)
	assert.True(t, withBenefits.MonthlyTax.GreaterThan(plain.MonthlyTax))
}

func TestComputeIncomeTaxZeroBase(t *testing.T) {
	tax, err := ComputeIncomeTax(TaxInput{FiscalBase: decimal.Zero}, defaultParams(t).TaxParameters())
	require.NoError(t, err)
	assert.True(t, tax.MonthlyTax.IsZero())
	assert.Empty(t, tax.Breakdown)
}

func TestComputeIncomeTaxUncappedSocialDeduction(t *testing.T) {
	params := defaultParams(t).TaxParameters()
	params.AnnualSocialCeiling = decimal.Zero

	tax, err := ComputeIncomeTax(TaxInput{FiscalBase: dec("2000000")}, params)
	require.NoError(t, err)
	assertDecimal(t, "960000", tax.SocialDeduction)
}

func TestTaxPerPartIsMonotonic(t *testing.T) {
	brackets := defaultParams(t).Brackets()
	step := dec("250000")
	previous := decimal.Zero
	for revenue := decimal.Zero; revenue.LessThanOrEqual(dec("20000000")); revenue = revenue.Add(step) {
		tax, err := TaxPerPart(revenue, brackets)
		require.NoError(t, err)
		assert.Truef(t, tax.GreaterThanOrEqual(previous), "tax(%s)=%s below %s", revenue, tax, previous)
		previous = tax
	}
}

func TestTaxPerPartTopBracket(t *testing.T) {
	tax, err := TaxPerPart(dec("10000000"), defaultParams(t).Brackets())
	require.NoError(t, err)
	// 4640 + 53600 + 500000 + 2000000 + 900000
	assertDecimal(t, "3458240", tax)
}

func TestValidateBrackets(t *testing.T) {
	cases := map[string][]TaxBracket{
		"empty":             nil,
		"not from zero":     {{Lower: dec("100"), Rate: dec("1")}},
		"bounded last":      {{Lower: dec("0"), Upper: decPtr("100"), Rate: dec("1")}},
		"gap":               {{Lower: dec("0"), Upper: decPtr("100"), Rate: dec("1")}, {Lower: dec("150"), Rate: dec("2")}},
		"unbounded middle":  {{Lower: dec("0"), Rate: dec("1")}, {Lower: dec("100"), Rate: dec("2")}},
		"negative rate":     {{Lower: dec("0"), Rate: dec("-1")}},
		"inverted interval": {{Lower: dec("0"), Upper: decPtr("0"), Rate: dec("1")}, {Lower: dec("0"), Rate: dec("2")}},
	}
	for name, brackets := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateBrackets(brackets)
			assert.True(t, errors.Is(err, ErrInvalidBrackets), "got %v", err)
		})
	}

	require.NoError(t, ValidateBrackets(defaultParams(t).Brackets()))
}

func TestComputeIncomeTaxRejectsInvalidBrackets(t *testing.T) {
	params := defaultParams(t).TaxParameters()
	params.Brackets = []TaxBracket{{Lower: dec("10"), Rate: dec("5")}}

	_, err := ComputeIncomeTax(TaxInput{FiscalBase: dec("500000")}, params)
	assert.ErrorIs(t, err, ErrInvalidBrackets)
}

func TestFamilyParts(t *testing.T) {
	cases := []struct {
		status   MaritalStatus
		children int
		want     string
	}{
		{MaritalSingle, 0, "1"},
		{MaritalSingle, 1, "2"},
		{MaritalSingle, 3, "3"},
		{MaritalDivorced, 2, "2.5"},
		{MaritalMarried, 0, "2"},
		{MaritalMarried, 3, "3.5"},
		{MaritalWidowed, 1, "2.5"},
		{MaritalMarried, 20, "6.5"},
		{MaritalSingle, -2, "1"},
	}
	for _, tc := range cases {
		got := FamilyParts(tc.status, tc.children)
		assertDecimal(t, tc.want, got, tc.status, tc.children)
		assert.True(t, got.GreaterThanOrEqual(dec("1")) && got.LessThanOrEqual(dec("6.5")))
	}
}

func TestHouseholdPartsOverride(t *testing.T) {
	assertDecimal(t, "4", Household{MaritalStatus: MaritalSingle, PartsOverride: decPtr("4")}.Parts())
	assertDecimal(t, "6.5", Household{PartsOverride: decPtr("9")}.Parts())
	assertDecimal(t, "1", Household{PartsOverride: decPtr("0.5")}.Parts())
	assertDecimal(t, "2", Household{MaritalStatus: MaritalMarried, PartsOverride: decPtr("0")}.Parts())
}
