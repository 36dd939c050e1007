package payroll

import "github.com/shopspring/decimal"

const (
	seniorityMinYears = 2
	seniorityMaxRate  = 30
)

// CompletedYears folds extra months into whole years of service.
func CompletedYears(years, months int) int {
	if years < 0 {
		years = 0
	}
	if months > 0 {
		years += months / 12
	}
	return years
}

// SeniorityRate returns the bonus rate as a fraction: nothing below two years,
// then one point per completed year, capped at 30%.
func SeniorityRate(years int) decimal.Decimal {
	switch {
	case years < seniorityMinYears:
		return decimal.Zero
	case years >= seniorityMaxRate:
		return decimal.NewFromInt(seniorityMaxRate).Div(hundred)
	default:
		return decimal.NewFromInt(int64(years)).Div(hundred)
	}
}
