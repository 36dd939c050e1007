package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ParameterProvider supplies tunable rates, ceilings and the bracket table.
// Both methods return the most recent value effective on or before asOf.
// A code with no value returns an error wrapping ErrParameterNotFound.
type ParameterProvider interface {
	Get(ctx context.Context, organizationID, code string, asOf time.Time) (decimal.Decimal, error)
	Brackets(ctx context.Context, organizationID string, asOf time.Time) ([]TaxBracket, error)
}

// Catalog is a read-only set of pay-line definitions. Codes returns the
// payslip template order.
type Catalog interface {
	Lookup(code string) (Definition, bool)
	Codes() []string
}

// CatalogSource yields the catalog in force for an organization.
type CatalogSource interface {
	CatalogFor(ctx context.Context, organizationID string) (Catalog, error)
}
