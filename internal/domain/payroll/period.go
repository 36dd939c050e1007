package payroll

import (
	"fmt"
	"strings"
	"time"
)

const periodLayout = "2006-01"

// Period is a payroll month.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod accepts YYYY-MM.
func ParsePeriod(value string) (Period, error) {
	parsed, err := time.Parse(periodLayout, strings.TrimSpace(value))
	if err != nil {
		return Period{}, fmt.Errorf("period %q must use YYYY-MM: %w", value, err)
	}
	return Period{Year: parsed.Year(), Month: parsed.Month()}, nil
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) Valid() bool {
	return p.Year >= 1900 && p.Year <= 9999 && p.Month >= time.January && p.Month <= time.December
}

func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month; parameters are resolved as of this date.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
