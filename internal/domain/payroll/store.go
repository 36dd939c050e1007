package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"paycore/internal/platform/querier"
)

// Store reads parameters, bracket tables and pay-line definitions from
// PostgreSQL. Rows without an organization apply to every organization.
// It implements ParameterProvider and CatalogSource.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Get(ctx context.Context, organizationID, code string, asOf time.Time) (decimal.Decimal, error) {
	var raw string
	err := s.DB.QueryRow(ctx, `
    SELECT value::text
    FROM payroll_parameters
    WHERE code = $1
      AND (organization_id = $2 OR organization_id IS NULL)
      AND effective_from <= $3
    ORDER BY (organization_id IS NULL), effective_from DESC
    LIMIT 1
  `, code, organizationID, asOf).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%s as of %s: %w", code, asOf.Format("2006-01-02"), ErrParameterNotFound)
	}
	if err != nil {
		return decimal.Zero, err
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parameter %s: %w", code, err)
	}
	return value, nil
}

func (s *Store) Brackets(ctx context.Context, organizationID string, asOf time.Time) ([]TaxBracket, error) {
	rows, err := s.DB.Query(ctx, `
    WITH chosen AS (
      SELECT organization_id, effective_from
      FROM payroll_tax_brackets
      WHERE (organization_id = $1 OR organization_id IS NULL)
        AND effective_from <= $2
      ORDER BY (organization_id IS NULL), effective_from DESC
      LIMIT 1
    )
    SELECT b.lower_bound::text, COALESCE(b.upper_bound::text, ''), b.rate::text
    FROM payroll_tax_brackets b
    JOIN chosen c
      ON b.effective_from = c.effective_from
     AND b.organization_id IS NOT DISTINCT FROM c.organization_id
    ORDER BY b.lower_bound
  `, organizationID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brackets []TaxBracket
	for rows.Next() {
		var lower, upper, rate string
		if err := rows.Scan(&lower, &upper, &rate); err != nil {
			return nil, err
		}
		bracket, err := parseBracket(lower, upper, rate)
		if err != nil {
			return nil, err
		}
		brackets = append(brackets, bracket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(brackets) == 0 {
		return nil, fmt.Errorf("bracket table as of %s: %w", asOf.Format("2006-01-02"), ErrParameterNotFound)
	}
	return brackets, nil
}

func parseBracket(lower, upper, rate string) (TaxBracket, error) {
	var bracket TaxBracket
	var err error
	if bracket.Lower, err = decimal.NewFromString(lower); err != nil {
		return TaxBracket{}, fmt.Errorf("bracket lower bound: %w", err)
	}
	if bracket.Rate, err = decimal.NewFromString(rate); err != nil {
		return TaxBracket{}, fmt.Errorf("bracket rate: %w", err)
	}
	if upper != "" {
		u, err := decimal.NewFromString(upper)
		if err != nil {
			return TaxBracket{}, fmt.Errorf("bracket upper bound: %w", err)
		}
		bracket.Upper = &u
	}
	return bracket, nil
}

// CatalogFor returns the organization's definitions; an organization row
// replaces the shared row with the same code.
func (s *Store) CatalogFor(ctx context.Context, organizationID string) (Catalog, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT code, label, category, COALESCE(base_description, ''), mode,
           COALESCE(formula, ''), COALESCE(rate_base, ''),
           COALESCE(rate::text, ''), COALESCE(amount::text, ''),
           taxable, social, active, organization_id IS NULL
    FROM pay_line_definitions
    WHERE organization_id = $1 OR organization_id IS NULL
    ORDER BY position, code, (organization_id IS NULL)
  `, organizationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var defs []Definition
	shared := map[string]bool{}
	index := map[string]int{}
	for rows.Next() {
		var entry catalogEntry
		var rate, amount string
		var global bool
		if err := rows.Scan(&entry.Code, &entry.Label, &entry.Category, &entry.BaseDescription, &entry.Mode,
			&entry.Formula, &entry.RateBase, &rate, &amount,
			&entry.Taxable, &entry.Social, &entry.Active, &global); err != nil {
			return nil, err
		}
		if entry.Rate, err = optionalDecimal(rate); err != nil {
			return nil, fmt.Errorf("pay line %s rate: %w", entry.Code, err)
		}
		if entry.Amount, err = optionalDecimal(amount); err != nil {
			return nil, fmt.Errorf("pay line %s amount: %w", entry.Code, err)
		}
		def, err := entry.definition()
		if err != nil {
			return nil, err
		}
		code := strings.TrimSpace(def.Code)
		if i, seen := index[code]; seen {
			if shared[code] && !global {
				defs[i] = def
				shared[code] = false
			}
			continue
		}
		index[code] = len(defs)
		shared[code] = global
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no definitions for %q", ErrCatalogUnavailable, organizationID)
	}
	catalog, err := NewMemoryCatalog(defs...)
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
