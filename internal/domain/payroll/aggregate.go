package payroll

import "github.com/shopspring/decimal"

// Bases are the earnings aggregates the contribution and tax engines read.
type Bases struct {
	Social     decimal.Decimal `json:"social"`
	Fiscal     decimal.Decimal `json:"fiscal"`
	NonTaxable decimal.Decimal `json:"nonTaxable"`
}

// Aggregate sums earnings-side lines. A line counts towards the social base
// and/or the fiscal base according to its flags; lines flagged neither are
// non-taxable. Withholding lines reduce the bases the same way, except that
// an untaxed withholding always comes off the non-taxable total. Other
// deductions and rounding lines are ignored.
func Aggregate(lines []Line) Bases {
	bases := Bases{Social: decimal.Zero, Fiscal: decimal.Zero, NonTaxable: decimal.Zero}
	for _, line := range lines {
		if line.Withholding && line.Category.IsDeduction() {
			if line.Social {
				bases.Social = bases.Social.Add(line.Amount)
			}
			if line.Taxable {
				bases.Fiscal = bases.Fiscal.Add(line.Amount)
			} else {
				bases.NonTaxable = bases.NonTaxable.Add(line.Amount)
			}
			continue
		}
		if !line.Category.IsEarning() {
			continue
		}
		if line.Social {
			bases.Social = bases.Social.Add(line.Amount)
		}
		if line.Taxable {
			bases.Fiscal = bases.Fiscal.Add(line.Amount)
		}
		if !line.Social && !line.Taxable {
			bases.NonTaxable = bases.NonTaxable.Add(line.Amount)
		}
	}
	return bases
}

// Gross is the paid earnings total: fiscal plus non-taxable.
func (b Bases) Gross() decimal.Decimal {
	return b.Fiscal.Add(b.NonTaxable)
}
