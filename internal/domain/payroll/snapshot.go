package payroll

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"paycore/internal/requestctx"
)

// Snapshot bundles everything a computation reads from collaborators.
type Snapshot struct {
	Params   Parameters
	Catalog  Catalog
	Warnings []Warning
}

// paramCodes lists the statutory codes plus the per-line codes the catalog
// refers to, so that nothing is fetched while the pipeline runs.
func paramCodes(catalog Catalog) []string {
	codes := slices.Clone(StatutoryParams)
	for _, code := range catalog.Codes() {
		def, _ := catalog.Lookup(code)
		switch def.Mode.(type) {
		case Rate:
			codes = append(codes, code+suffixRate, code+suffixCeiling)
		case Fixed:
			codes = append(codes, code+suffixAmount)
		}
	}
	return codes
}

type loader struct {
	provider ParameterProvider
	catalogs CatalogSource
	timeout  time.Duration
	logger   *slog.Logger
	metrics  Recorder
}

// load fetches the catalog and the parameters effective for organizationID and
// period. It never fails: unavailable values fall back to the defaults.
func (l loader) load(ctx context.Context, organizationID string, period Period) Snapshot {
	var warnings []Warning
	asOf := period.End()
	logger := requestctx.Logger(ctx, l.logger)

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	catalog := Catalog(DefaultCatalog())
	if l.catalogs != nil {
		loaded, err := call(ctx, func(ctx context.Context) (Catalog, error) {
			return l.catalogs.CatalogFor(ctx, organizationID)
		})
		if err != nil || loaded == nil {
			logger.Warn("pay-line catalog unavailable, using default catalog", "organizationId", organizationID, "err", err)
			warnings = append(warnings, Warning{Code: WarningCatalogDefaulted, Message: "default pay-line catalog applied"})
		} else {
			catalog = loaded
		}
	}

	defaults := DefaultProvider()
	values := make(map[string]decimal.Decimal)
	var defaulted []string
	for _, code := range paramCodes(catalog) {
		if _, seen := values[code]; seen {
			continue
		}
		value, err := l.fetch(ctx, organizationID, code, asOf)
		if err == nil {
			values[code] = value
			continue
		}
		fallback, fbErr := defaults.Get(context.Background(), "", code, asOf)
		if fbErr != nil {
			// optional per-line codes have no default
			if !errors.Is(err, ErrParameterNotFound) {
				logger.Warn("payroll parameter unavailable", "code", code, "organizationId", organizationID, "err", err)
			}
			continue
		}
		unavailable := &ParameterUnavailableError{Code: code, Err: err}
		logger.Warn("payroll parameter defaulted", "code", code, "organizationId", organizationID, "err", unavailable)
		l.metrics.ParameterDefaulted(code)
		values[code] = fallback
		defaulted = append(defaulted, code)
	}

	brackets, err := l.brackets(ctx, organizationID, asOf)
	if err == nil {
		err = ValidateBrackets(brackets)
	}
	if err != nil {
		logger.Warn("tax brackets defaulted", "organizationId", organizationID, "err", err)
		l.metrics.ParameterDefaulted("TAX_BRACKETS")
		brackets, _ = defaults.Brackets(context.Background(), "", asOf)
		defaulted = append(defaulted, "TAX_BRACKETS")
	}

	params := NewParameters(organizationID, asOf, values, brackets)
	params.Defaulted = defaulted
	for _, code := range defaulted {
		warnings = append(warnings, Warning{Code: WarningParameterDefaulted, Message: code + " taken from statutory defaults"})
	}
	return Snapshot{Params: params, Catalog: catalog, Warnings: warnings}
}

func (l loader) fetch(ctx context.Context, organizationID, code string, asOf time.Time) (decimal.Decimal, error) {
	if l.provider == nil {
		return decimal.Zero, ErrParameterNotFound
	}
	return call(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return l.provider.Get(ctx, organizationID, code, asOf)
	})
}

func (l loader) brackets(ctx context.Context, organizationID string, asOf time.Time) ([]TaxBracket, error) {
	if l.provider == nil {
		return nil, ErrParameterNotFound
	}
	return call(ctx, func(ctx context.Context) ([]TaxBracket, error) {
		return l.provider.Brackets(ctx, organizationID, asOf)
	})
}

// call runs fn and gives up when ctx expires even if fn ignores ctx.
func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
