package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Resolver computes pay-line amounts. It reads the catalog only to know
// whether an absence line takes over the proration of the base salary.
type Resolver struct {
	Catalog Catalog
}

// Resolve computes one line. Earning and withholding lines see only the lines
// resolved before them; contribution and deduction lines see every earning
// line in prior.
func (r Resolver) Resolve(def Definition, in EmployeePeriodInput, prior []Line, params Parameters) (Line, error) {
	line := Line{
		Code:     def.Code,
		Label:    def.Label,
		Category: def.Category,
		Amount:   decimal.Zero,
		Social:   def.Social,
		Taxable:  def.Taxable,
	}
	line.Withholding = def.withholdsEarnings()
	if def.Category == CategoryRounding {
		return Line{}, fmt.Errorf("%s: %w", def.Code, ErrEngineOwnedLine)
	}

	if ref, ok := def.formula(); ok {
		if ref.EngineOwned() {
			return Line{}, fmt.Errorf("%s: %w", def.Code, ErrEngineOwnedLine)
		}
		line.Source = SourceFormula
		switch ref {
		case FormulaBaseSalary:
			r.baseSalary(&line, in, params)
		case FormulaSeniority:
			seniority(&line, in)
		case FormulaAbsence:
			absence(&line, in, prior, params)
		}
		return signed(line)
	}

	if amount, hours, ok := in.entered(def.Code); ok {
		line.Amount = amount
		line.Quantity = hours
		line.Source = SourceManual
		return signed(line)
	}
	if amount, ok := in.fixedCharge(def.Code); ok {
		line.Amount = amount
		line.Source = SourceFixedCharge
		return signed(line)
	}

	switch m := def.Mode.(type) {
	case Rate:
		if def.Category.IsEarning() && m.Base.Aggregate() {
			return Line{}, fmt.Errorf("%s uses %s: %w", def.Code, m.Base, ErrCircularBase)
		}
		base := rateBase(m.Base, in, prior)
		if ceiling, ok := params.Value(def.Code + suffixCeiling); ok {
			base = capAt(base, ceiling)
		}
		rate, ok := params.Percent(def.Code + suffixRate)
		if !ok {
			rate = decimal.Zero
			if m.Rate != nil {
				rate = m.Rate.Div(hundred)
			}
		}
		pct := rate.Mul(hundred)
		line.BaseAmount = &base
		line.AppliedRate = &pct
		line.Amount = money(base.Mul(rate))
		line.Source = SourceRate
	case Fixed:
		line.Amount = params.ValueOr(def.Code+suffixAmount, m.Amount)
		line.Source = SourceFixed
	default:
		line.Source = SourceDefault
	}
	return signed(line)
}

// absenceCode returns the code of the active absence line, if any.
func (r Resolver) absenceCode() (string, bool) {
	if r.Catalog == nil {
		return "", false
	}
	for _, code := range r.Catalog.Codes() {
		def, _ := r.Catalog.Lookup(code)
		if ref, ok := def.formula(); ok && ref == FormulaAbsence && def.Active {
			return code, true
		}
	}
	return "", false
}

// baseSalary prorates the monthly salary over the days paid. When an absence
// line withholds the missing days, those days are paid here and taken back
// there before the bases are summed, so the proration is applied once.
func (r Resolver) baseSalary(line *Line, in EmployeePeriodInput, params Parameters) {
	workingDays := params.WorkingDays()
	paid := in.DaysWorked
	if code, ok := r.absenceCode(); ok {
		paid = paid.Add(absentDays(in, code, workingDays))
	}
	paid = decimal.Min(paid, workingDays)
	base := in.BaseSalary
	line.BaseAmount = &base
	line.Quantity = &paid
	line.Amount = money(in.BaseSalary.Mul(paid).Div(workingDays))
}

func seniority(line *Line, in EmployeePeriodInput) {
	years := CompletedYears(in.SeniorityYears, in.SeniorityMonths)
	rate := SeniorityRate(years)
	pct := rate.Mul(hundred)
	qty := decimal.NewFromInt(int64(years))
	base := in.BaseSalary
	line.Quantity = &qty
	line.AppliedRate = &pct
	line.BaseAmount = &base
	line.Amount = money(in.BaseSalary.Mul(rate))
}

func absence(line *Line, in EmployeePeriodInput, prior []Line, params Parameters) {
	workingDays := params.WorkingDays()
	days := absentDays(in, line.Code, workingDays)
	if !days.IsPositive() {
		return
	}
	supplement := decimal.Zero
	for _, l := range prior {
		if l.Code == CodeSupplement && l.Category.IsEarning() {
			supplement = supplement.Add(l.Amount)
		}
	}
	daily := in.BaseSalary.Add(supplement).Div(workingDays)
	line.Quantity = &days
	line.BaseAmount = &daily
	line.Amount = money(daily.Mul(days)).Neg()
}

// absentDays prefers an explicit entry on the absence code (days carried in
// the hours field) and otherwise counts the days short of a full month.
func absentDays(in EmployeePeriodInput, code string, workingDays decimal.Decimal) decimal.Decimal {
	if _, days, ok := in.entered(code); ok && days != nil {
		return decimal.Max(*days, decimal.Zero)
	}
	if in.DaysWorked.LessThan(workingDays) {
		return workingDays.Sub(in.DaysWorked)
	}
	return decimal.Zero
}

func rateBase(base RateBase, in EmployeePeriodInput, prior []Line) decimal.Decimal {
	switch base {
	case RateBaseSocial:
		return Aggregate(prior).Social
	case RateBaseFiscal:
		return Aggregate(prior).Fiscal
	case RateBaseGross:
		return Aggregate(prior).Gross()
	default:
		return in.BaseSalary
	}
}

// signed enforces the sign convention: deductions are negative, earnings may
// not be.
func signed(line Line) (Line, error) {
	switch {
	case line.Category.IsDeduction():
		line.Amount = line.Amount.Abs().Neg()
	case line.Category.IsEarning() && line.Amount.IsNegative():
		return Line{}, fmt.Errorf("%s amount %s: %w", line.Code, line.Amount.String(), ErrNegativeEarning)
	}
	return line, nil
}
