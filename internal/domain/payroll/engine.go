package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"

	defaultParameterTimeout = 2 * time.Second
	defaultConcurrency      = 4
)

// Recorder receives engine metrics.
type Recorder interface {
	ObserveBulletin(outcome string, duration time.Duration)
	ParameterDefaulted(code string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBulletin(string, time.Duration) {}
func (nopRecorder) ParameterDefaulted(string)             {}

type Option func(*Engine)

// WithParameters sets the parameter provider. A nil provider means every
// computation runs on the statutory defaults.
func WithParameters(provider ParameterProvider) Option {
	return func(e *Engine) { e.provider = provider }
}

func WithCatalogs(source CatalogSource) Option {
	return func(e *Engine) {
		if source != nil {
			e.catalogs = source
		}
	}
}

func WithParameterTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.metrics = recorder
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine turns EmployeePeriodInput into Bulletins. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	provider    ParameterProvider
	catalogs    CatalogSource
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     Recorder
	now         func() time.Time
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		provider:    DefaultProvider(),
		catalogs:    DefaultCatalog(),
		timeout:     defaultParameterTimeout,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		metrics:     nopRecorder{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadSnapshot fetches the catalog and parameters for one organization and period.
func (e *Engine) LoadSnapshot(ctx context.Context, organizationID string, period Period) Snapshot {
	return loader{
		provider: e.provider,
		catalogs: e.catalogs,
		timeout:  e.timeout,
		logger:   e.logger,
		metrics:  e.metrics,
	}.load(ctx, organizationID, period)
}

// Compute validates in, fetches its snapshot and computes the bulletin.
func (e *Engine) Compute(ctx context.Context, in EmployeePeriodInput) (Bulletin, error) {
	if err := in.Validate(); err != nil {
		e.metrics.ObserveBulletin(OutcomeInvalid, 0)
		return Bulletin{}, err
	}
	return e.ComputeWith(in, e.LoadSnapshot(ctx, in.OrganizationID, in.Period))
}

// ComputeWith runs the pipeline against an already fetched snapshot. A panic
// in the pipeline is returned as an error and counted as a failed bulletin.
func (e *Engine) ComputeWith(in EmployeePeriodInput, snap Snapshot) (bulletin Bulletin, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			bulletin, err = Bulletin{}, fmt.Errorf("payroll computation panicked: %v", r)
		}
		outcome := OutcomeSucceeded
		switch {
		case errors.Is(err, ErrValidation):
			outcome = OutcomeInvalid
		case err != nil:
			outcome = OutcomeFailed
		}
		e.metrics.ObserveBulletin(outcome, time.Since(start))
	}()
	return e.compute(in, snap)
}

// ComputeMany computes every input independently. One snapshot is fetched per
// organization and period; a failing employee never aborts the batch.
func (e *Engine) ComputeMany(ctx context.Context, inputs []EmployeePeriodInput) BatchResult {
	type groupKey struct {
		organizationID string
		period         Period
	}
	snapshots := make(map[groupKey]Snapshot)
	for _, in := range inputs {
		if in.Validate() != nil {
			continue
		}
		key := groupKey{organizationID: in.OrganizationID, period: in.Period}
		if _, ok := snapshots[key]; !ok {
			snapshots[key] = e.LoadSnapshot(ctx, in.OrganizationID, in.Period)
		}
	}

	type outcome struct {
		bulletin Bulletin
		err      error
	}
	outcomes := make([]outcome, len(inputs))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, in := range inputs {
		snap := snapshots[groupKey{organizationID: in.OrganizationID, period: in.Period}]
		g.Go(func() error {
			b, err := e.ComputeWith(in, snap)
			outcomes[i] = outcome{bulletin: b, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Succeeded: []Bulletin{}, Failed: []Failure{}}
	for i, o := range outcomes {
		if o.err != nil {
			e.logger.Warn("payroll computation failed", "employeeId", inputs[i].EmployeeID, "err", o.err)
			result.Failed = append(result.Failed, Failure{EmployeeID: inputs[i].EmployeeID, Reason: o.err.Error(), Err: o.err})
			continue
		}
		result.Succeeded = append(result.Succeeded, o.bulletin)
	}
	return result
}

func (e *Engine) compute(in EmployeePeriodInput, snap Snapshot) (Bulletin, error) {
	if err := in.Validate(); err != nil {
		return Bulletin{}, err
	}
	if snap.Catalog == nil {
		snap.Catalog = DefaultCatalog()
	}
	p := &pipeline{
		in:       in,
		snap:     snap,
		resolver: Resolver{Catalog: snap.Catalog},
		logger:   e.logger.With("employeeId", in.EmployeeID, "period", in.Period.String()),
		warnings: slices.Clone(snap.Warnings),
	}
	p.checkEntries()

	// Phase 1: earnings and withholdings, then the aggregates they produce.
	earnings := p.resolve(nil, func(def Definition) bool {
		return def.Category.IsEarning() || def.withholdsEarnings()
	})
	bases := Aggregate(earnings)

	// Statutory engines.
	params := snap.Params
	contributions := ComputeContributions(bases.Social, params.ContributionRates())
	taxIn := TaxInput{
		FiscalBase:     bases.Fiscal,
		BenefitsInKind: in.BenefitsInKind,
		Household: Household{
			MaritalStatus: in.MaritalStatus,
			Children:      in.ChildrenCount,
			PartsOverride: in.FamilyQuotientOverride,
		},
	}
	if in.DeductibleCharges != nil {
		taxIn.DeductibleCharges = *in.DeductibleCharges
	}
	incomeTax, err := ComputeIncomeTax(taxIn, params.TaxParameters())
	if err != nil {
		return Bulletin{}, fmt.Errorf("income tax: %w", err)
	}
	mandatory := MandatoryContributions{
		Social:    contributions.Employee.Social,
		Health:    contributions.Employee.Health,
		IncomeTax: incomeTax.MonthlyTax,
	}
	mandatory.Total = decimal.Sum(mandatory.Social, mandatory.Health, mandatory.IncomeTax)
	mandatory.Lines = []Line{
		p.statutoryLine(FormulaSocialSecurity, contributions.Employee.Social, bases.Social, params.ContributionRates().SocialEmployeeRate),
		p.statutoryLine(FormulaHealthLevy, contributions.Employee.Health, bases.Social, params.ContributionRates().HealthRate),
		p.statutoryLine(FormulaIncomeTax, incomeTax.MonthlyTax, bases.Fiscal, decimal.Zero),
	}

	// Phase 2: levies and deductions, which may read the earnings aggregates.
	otherLines := p.resolve(earnings, func(def Definition) bool {
		return def.Category.IsDeduction() && !def.withholdsEarnings()
	})
	other := OtherDeductions{Lines: otherLines, Total: decimal.Zero}
	for _, line := range otherLines {
		other.Total = other.Total.Sub(line.Amount)
	}

	// Rounding and reconciliation.
	net := NetBeforeRounding(bases, mandatory.Total, other.Total)
	adjustment := decimal.Zero
	if def, ok := p.rounding(); ok {
		adjustment = RoundingAdjustment(net, params.RoundingIncrement())
		earnings = append(earnings, Line{
			Code:     def.Code,
			Label:    def.Label,
			Category: CategoryRounding,
			Amount:   adjustment,
			Source:   SourceEngine,
		})
	}
	netPay := net.Add(adjustment)
	if netPay.IsNegative() {
		p.warn(WarningNegativeNet, fmt.Sprintf("net pay %s is negative", netPay.String()))
	}

	grand := bases.Gross().Add(adjustment)
	bulletin := Bulletin{
		ID:             uuid.NewString(),
		EmployeeID:     in.EmployeeID,
		OrganizationID: in.OrganizationID,
		Period:         in.Period,
		ComputedAt:     e.now().UTC(),
		Earnings: Earnings{
			Lines:           earnings,
			SocialBaseTotal: bases.Social,
			FiscalBaseTotal: bases.Fiscal,
			NonTaxableTotal: bases.NonTaxable,
			GrandTotal:      grand,
		},
		Deductions: Deductions{
			MandatoryContributions: mandatory,
			OtherDeductions:        other,
			Total:                  mandatory.Total.Add(other.Total),
		},
		EmployerContributions: contributions.Employer,
		RoundingAdjustment:    adjustment,
		NetPay:                netPay,
		EmployerTotalCost:     grand.Add(contributions.Employer.Total),
		IncomeTax:             incomeTax,
		Warnings:              p.warnings,
	}
	if err := Reconcile(bulletin); err != nil {
		p.logger.Error("payroll reconciliation failed", "err", err)
		return Bulletin{}, err
	}
	return bulletin, nil
}

// Reconcile re-derives net pay from the bulletin lines and checks it against
// both the totals and NetPay. Amounts are exact decimals, so any difference
// is a violation.
func Reconcile(b Bulletin) error {
	fromTotals := b.Earnings.FiscalBaseTotal.
		Add(b.Earnings.NonTaxableTotal).
		Sub(b.Deductions.MandatoryContributions.Total).
		Sub(b.Deductions.OtherDeductions.Total).
		Add(b.RoundingAdjustment)

	fromLines := decimal.Zero
	for _, line := range b.AllLines() {
		switch {
		case line.Category.IsEarning():
			if line.Taxable || !line.Social {
				fromLines = fromLines.Add(line.Amount)
			}
		case line.Category == CategoryRounding, line.Category.IsDeduction():
			fromLines = fromLines.Add(line.Amount)
		}
	}

	for _, got := range []decimal.Decimal{fromTotals, fromLines} {
		if !got.Equal(b.NetPay) {
			return &InvariantViolationError{EmployeeID: b.EmployeeID, Expected: got, Actual: b.NetPay}
		}
	}
	return nil
}

// pipeline carries the per-computation state of Engine.compute.
type pipeline struct {
	in       EmployeePeriodInput
	snap     Snapshot
	resolver Resolver
	logger   *slog.Logger
	warnings []Warning
}

func (p *pipeline) warn(code, message string) {
	p.warnings = append(p.warnings, Warning{Code: code, Message: message})
}

// checkEntries records entered lines and fixed charges the catalog cannot
// honour; they are skipped and the rest of the bulletin still computes.
func (p *pipeline) checkEntries() {
	seen := map[string]bool{}
	codes := make([]string, 0, len(p.in.EnteredLines)+len(p.in.FixedCharges))
	for _, line := range p.in.EnteredLines {
		codes = append(codes, line.Code)
	}
	for _, charge := range p.in.FixedCharges {
		codes = append(codes, charge.Code)
	}
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		def, ok := p.snap.Catalog.Lookup(code)
		switch {
		case !ok:
			err := &UnknownPayLineError{Code: code}
			p.logger.Warn("pay line skipped", "code", code, "err", err)
			p.warn(WarningUnknownPayLine, err.Error())
		case !def.Active:
			p.logger.Warn("inactive pay line skipped", "code", code)
			p.warn(WarningInactivePayLine, fmt.Sprintf("pay line %q is inactive", code))
		case def.Category == CategoryRounding:
			p.warn(WarningEngineOwnedEntry, fmt.Sprintf("pay line %q is computed by the engine", code))
		default:
			ref, isFormula := def.formula()
			if !isFormula {
				continue
			}
			if ref.EngineOwned() {
				p.warn(WarningEngineOwnedEntry, fmt.Sprintf("pay line %q is computed by the engine", code))
				continue
			}
			if p.overridesFormula(code) {
				p.logger.Warn("entered amount ignored", "code", code, "formula", string(ref))
				p.warn(WarningIgnoredEntry, fmt.Sprintf("pay line %q is computed by the %s formula; the entered amount is ignored", code, ref))
			}
		}
	}
}

// overridesFormula reports whether the input carries an amount for a
// formula-computed code. Days entered on the absence line are still read.
func (p *pipeline) overridesFormula(code string) bool {
	if amount, _, ok := p.in.entered(code); ok && !amount.IsZero() {
		return true
	}
	_, ok := p.in.fixedCharge(code)
	return ok
}

// codes lists the catalog template followed by entered codes the catalog
// knows but does not enumerate.
func (p *pipeline) codes() []string {
	codes := p.snap.Catalog.Codes()
	for _, line := range p.in.EnteredLines {
		if slices.Contains(codes, line.Code) {
			continue
		}
		if _, ok := p.snap.Catalog.Lookup(line.Code); ok {
			codes = append(codes, line.Code)
		}
	}
	return codes
}

func (p *pipeline) resolve(prior []Line, include func(Definition) bool) []Line {
	var out []Line
	for _, code := range p.codes() {
		def, ok := p.snap.Catalog.Lookup(code)
		if !ok || !def.Active || !include(def) {
			continue
		}
		if ref, isFormula := def.formula(); isFormula && ref.EngineOwned() {
			continue
		}
		visible := append(slices.Clone(prior), out...)
		line, err := p.resolver.Resolve(def, p.in, visible, p.snap.Params)
		if err != nil {
			p.logger.Warn("pay line skipped", "code", code, "err", err)
			switch {
			case errors.Is(err, ErrCircularBase):
				p.warn(WarningCircularBase, err.Error())
			case errors.Is(err, ErrNegativeEarning):
				p.warn(WarningNegativeEarning, err.Error())
			default:
				p.warn(WarningEngineOwnedEntry, err.Error())
			}
			continue
		}
		if line.Amount.IsZero() {
			continue
		}
		out = append(out, line)
	}
	return out
}

func (p *pipeline) statutoryLine(ref FormulaRef, amount, base, rate decimal.Decimal) Line {
	code, label := statutoryDefaults(ref)
	for _, c := range p.snap.Catalog.Codes() {
		def, _ := p.snap.Catalog.Lookup(c)
		if r, ok := def.formula(); ok && r == ref {
			code, label = def.Code, def.Label
			break
		}
	}
	line := Line{
		Code:       code,
		Label:      label,
		Category:   CategoryContribution,
		Amount:     amount.Neg(),
		BaseAmount: &base,
		Source:     SourceEngine,
	}
	if rate.IsPositive() {
		pct := rate.Mul(hundred)
		line.AppliedRate = &pct
	}
	return line
}

func statutoryDefaults(ref FormulaRef) (string, string) {
	switch ref {
	case FormulaSocialSecurity:
		return CodeSocialSec, DefaultLabelCNSS
	case FormulaHealthLevy:
		return CodeHealthLevy, DefaultLabelCAMU
	default:
		return CodeIncomeTax, DefaultLabelIRPP
	}
}

func (p *pipeline) rounding() (Definition, bool) {
	for _, code := range p.snap.Catalog.Codes() {
		def, _ := p.snap.Catalog.Lookup(code)
		if def.Category == CategoryRounding && def.Active {
			return def, true
		}
	}
	return Definition{}, false
}
