package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"paycore/internal/domain/payroll"
)

// Seed loads the statutory defaults as shared (organization-less) rows.
// Existing rows are left untouched.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensureParameters(ctx, pool, payroll.DefaultProvider()); err != nil {
		return err
	}
	if err := ensureBrackets(ctx, pool, payroll.DefaultProvider()); err != nil {
		return err
	}
	return ensureCatalog(ctx, pool, payroll.DefaultCatalog())
}

func ensureParameters(ctx context.Context, pool *pgxpool.Pool, provider *payroll.StaticProvider) error {
	for _, v := range provider.Values() {
		_, err := pool.Exec(ctx, `
      INSERT INTO payroll_parameters (organization_id, code, value, effective_from)
      VALUES (NULLIF($1, ''), $2, $3::numeric, $4)
      ON CONFLICT DO NOTHING
    `, v.OrganizationID, v.Code, v.Value.String(), v.EffectiveFrom)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureBrackets(ctx context.Context, pool *pgxpool.Pool, provider *payroll.StaticProvider) error {
	for _, table := range provider.Tables() {
		for _, bracket := range table.Brackets {
			var upper *string
			if bracket.Upper != nil {
				s := bracket.Upper.String()
				upper = &s
			}
			_, err := pool.Exec(ctx, `
        INSERT INTO payroll_tax_brackets (organization_id, effective_from, lower_bound, upper_bound, rate)
        VALUES (NULLIF($1, ''), $2, $3::numeric, $4::numeric, $5::numeric)
        ON CONFLICT DO NOTHING
      `, table.OrganizationID, table.EffectiveFrom, bracket.Lower.String(), upper, bracket.Rate.String())
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureCatalog(ctx context.Context, pool *pgxpool.Pool, catalog payroll.Catalog) error {
	for position, code := range catalog.Codes() {
		def, _ := catalog.Lookup(code)
		mode, formula, rateBase, rate, amount := payroll.ModeColumns(def.Mode)
		_, err := pool.Exec(ctx, `
      INSERT INTO pay_line_definitions
        (organization_id, position, code, label, category, base_description, mode, formula, rate_base, rate, amount, taxable, social, active)
      VALUES (NULL, $1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9::numeric, $10::numeric, $11, $12, $13)
      ON CONFLICT DO NOTHING
    `, position, def.Code, def.Label, string(def.Category), def.BaseDescription, mode, formula, rateBase,
			decimalText(rate), decimalText(amount), def.Taxable, def.Social, def.Active)
		if err != nil {
			return err
		}
	}
	return nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
