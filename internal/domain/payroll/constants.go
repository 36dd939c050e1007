package payroll

// Category classifies a pay line on the bulletin.
type Category string

const (
	CategoryTaxableEarning    Category = "taxable-earning"
	CategoryContribution      Category = "social-and-fiscal-contribution"
	CategoryNonTaxableEarning Category = "non-taxable-earning"
	CategoryDeduction         Category = "non-taxable-deduction"
	CategoryRounding          Category = "rounding-element"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryTaxableEarning, CategoryContribution, CategoryNonTaxableEarning, CategoryDeduction, CategoryRounding:
		return true
	}
	return false
}

// IsEarning reports whether lines of this category sit on the earnings side
// and feed the base aggregates.
func (c Category) IsEarning() bool {
	return c == CategoryTaxableEarning || c == CategoryNonTaxableEarning
}

// IsDeduction reports whether lines of this category reduce net pay.
func (c Category) IsDeduction() bool {
	return c == CategoryContribution || c == CategoryDeduction
}

// FormulaRef names a built-in computation.
type FormulaRef string

const (
	FormulaBaseSalary     FormulaRef = "base-salary"
	FormulaSeniority      FormulaRef = "seniority"
	FormulaAbsence        FormulaRef = "absence"
	FormulaSocialSecurity FormulaRef = "social-security"
	FormulaHealthLevy     FormulaRef = "health-levy"
	FormulaIncomeTax      FormulaRef = "income-tax"
)

// EngineOwned reports whether the formula is computed by the contribution or
// tax engines rather than by the line resolver.
func (f FormulaRef) EngineOwned() bool {
	return f == FormulaSocialSecurity || f == FormulaHealthLevy || f == FormulaIncomeTax
}

// RateBase names the amount a Rate-mode line applies its rate to.
type RateBase string

const (
	RateBaseSalary RateBase = "base-salary"
	RateBaseSocial RateBase = "social-base"
	RateBaseFiscal RateBase = "fiscal-base"
	RateBaseGross  RateBase = "gross"
)

// Aggregate reports whether the base depends on the earnings aggregates and so
// cannot be used by an earnings line.
func (b RateBase) Aggregate() bool {
	return b == RateBaseSocial || b == RateBaseFiscal || b == RateBaseGross
}

// Source records which resolution step produced a line amount.
type Source string

const (
	SourceManual      Source = "manual"
	SourceFixedCharge Source = "fixed-charge"
	SourceRate        Source = "rate"
	SourceFixed       Source = "fixed"
	SourceFormula     Source = "formula"
	SourceEngine      Source = "engine"
	SourceDefault     Source = "default"
)

// Standard pay-line codes of the default catalog.
const (
	CodeBaseSalary   = "SAL_BASE"
	CodeSeniority    = "ANCIENNETE"
	CodeSupplement   = "SURSALAIRE"
	CodeAbsence      = "ABSENCE"
	CodeSocialSec    = "CNSS"
	CodeHealthLevy   = "CAMU"
	CodeIncomeTax    = "IRPP"
	CodeRounding     = "ARRONDI"
	DefaultLabelCNSS = "Cotisation CNSS"
	DefaultLabelCAMU = "Contribution CAMU"
	DefaultLabelIRPP = "IRPP"
)

// Parameter codes read from the parameter provider.
const (
	ParamWorkingDays            = "WORKING_DAYS"
	ParamSocialCeiling          = "CNSS_CEILING"
	ParamSocialEmployeeRate     = "CNSS_EMPLOYEE_RATE"
	ParamSocialEmployerRate     = "CNSS_EMPLOYER_RATE"
	ParamFamilyAllowanceRate    = "FAMILY_ALLOWANCE_RATE"
	ParamFamilyAllowanceCeiling = "FAMILY_ALLOWANCE_CEILING"
	ParamWorkAccidentRate       = "WORK_ACCIDENT_RATE"
	ParamWorkAccidentCeiling    = "WORK_ACCIDENT_CEILING"
	ParamHealthRate             = "CAMU_RATE"
	ParamHealthThreshold        = "CAMU_THRESHOLD"
	ParamUniqueTaxTreasuryRate  = "TUS_TREASURY_RATE"
	ParamUniqueTaxSocialRate    = "TUS_SOCIAL_RATE"
	ParamProfessionalRate       = "IRPP_PROFESSIONAL_RATE"
	ParamRoundingIncrement      = "ROUNDING_INCREMENT"

	suffixRate    = "_RATE"
	suffixCeiling = "_CEILING"
	suffixAmount  = "_AMOUNT"
)

// StatutoryParams lists every parameter the engines read for each computation.
var StatutoryParams = []string{
	ParamWorkingDays,
	ParamSocialCeiling,
	ParamSocialEmployeeRate,
	ParamSocialEmployerRate,
	ParamFamilyAllowanceRate,
	ParamFamilyAllowanceCeiling,
	ParamWorkAccidentRate,
	ParamWorkAccidentCeiling,
	ParamHealthRate,
	ParamHealthThreshold,
	ParamUniqueTaxTreasuryRate,
	ParamUniqueTaxSocialRate,
	ParamProfessionalRate,
	ParamRoundingIncrement,
}

const (
	WarningUnknownPayLine     = "unknown_pay_line"
	WarningInactivePayLine    = "inactive_pay_line"
	WarningNegativeEarning    = "negative_earning"
	WarningEngineOwnedEntry   = "engine_owned_entry"
	WarningCircularBase       = "circular_rate_base"
	WarningParameterDefaulted = "parameter_defaulted"
	WarningCatalogDefaulted   = "catalog_defaulted"
	WarningNegativeNet        = "negative_net"
	WarningIgnoredEntry       = "ignored_entry"
)

// MaritalStatus drives the family quotient.
type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "single"
	MaritalMarried  MaritalStatus = "married"
	MaritalDivorced MaritalStatus = "divorced"
	MaritalWidowed  MaritalStatus = "widowed"
)

func (m MaritalStatus) Valid() bool {
	switch m {
	case MaritalSingle, MaritalMarried, MaritalDivorced, MaritalWidowed:
		return true
	}
	return false
}

type EmploymentStatus string

const (
	EmploymentPermanent EmploymentStatus = "permanent"
	EmploymentFixedTerm EmploymentStatus = "fixed-term"
	EmploymentTemporary EmploymentStatus = "temporary"
	EmploymentIntern    EmploymentStatus = "intern"
)

func (e EmploymentStatus) Valid() bool {
	switch e {
	case EmploymentPermanent, EmploymentFixedTerm, EmploymentTemporary, EmploymentIntern:
		return true
	}
	return false
}
