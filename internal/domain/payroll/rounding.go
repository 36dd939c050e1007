package payroll

import "github.com/shopspring/decimal"

// NetBeforeRounding is the reconciliation formula without the rounding line.
func NetBeforeRounding(bases Bases, mandatory, other decimal.Decimal) decimal.Decimal {
	return bases.Fiscal.Add(bases.NonTaxable).Sub(mandatory).Sub(other)
}

// RoundingAdjustment returns the signed amount that brings net to the nearest
// multiple of increment (half away from zero).
func RoundingAdjustment(net, increment decimal.Decimal) decimal.Decimal {
	if !increment.IsPositive() {
		return decimal.Zero
	}
	rounded := net.Div(increment).Round(0).Mul(increment)
	return rounded.Sub(net)
}
