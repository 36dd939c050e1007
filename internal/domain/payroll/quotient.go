package payroll

import "github.com/shopspring/decimal"

var (
	halfPart    = decimal.NewFromFloat(0.5)
	minParts    = decimal.NewFromInt(1)
	maxParts    = decimal.NewFromFloat(6.5)
	coupleParts = decimal.NewFromInt(2)
)

// Household carries what the family quotient depends on.
type Household struct {
	MaritalStatus MaritalStatus
	Children      int
	// PartsOverride replaces the table when set; it is clamped to [1, 6.5].
	PartsOverride *decimal.Decimal
}

// FamilyParts returns the family quotient. Divorced taxpayers follow the
// single rows and widowed taxpayers the married rows.
//
//	single/divorced, 0 children  -> 1
//	single/divorced, n children  -> 2 + (n-1) x 0.5
//	married/widowed, 0 children  -> 2
//	married/widowed, n children  -> 2 + n x 0.5
func FamilyParts(status MaritalStatus, children int) decimal.Decimal {
	if children < 0 {
		children = 0
	}
	var parts decimal.Decimal
	switch status {
	case MaritalMarried, MaritalWidowed:
		parts = coupleParts.Add(halfPart.Mul(decimal.NewFromInt(int64(children))))
	default:
		if children == 0 {
			parts = minParts
		} else {
			parts = coupleParts.Add(halfPart.Mul(decimal.NewFromInt(int64(children - 1))))
		}
	}
	return clampParts(parts)
}

func (h Household) Parts() decimal.Decimal {
	if h.PartsOverride != nil && h.PartsOverride.IsPositive() {
		return clampParts(*h.PartsOverride)
	}
	return FamilyParts(h.MaritalStatus, h.Children)
}

func clampParts(parts decimal.Decimal) decimal.Decimal {
	if parts.LessThan(minParts) {
		return minParts
	}
	if parts.GreaterThan(maxParts) {
		return maxParts
	}
	return parts
}
