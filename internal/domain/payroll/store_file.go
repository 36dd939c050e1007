package payroll

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

//go:embed defaults_parameters.toml
var defaultParametersTOML string

//go:embed defaults_catalog.toml
var defaultCatalogTOML string

type parameterFile struct {
	Parameters    []parameterEntry `toml:"parameter"`
	BracketTables []bracketTable   `toml:"bracket_table"`
}

type parameterEntry struct {
	Organization  string          `toml:"organization"`
	Code          string          `toml:"code"`
	Value         decimal.Decimal `toml:"value"`
	EffectiveFrom time.Time       `toml:"effective_from"`
}

type bracketTable struct {
	Organization  string       `toml:"organization"`
	EffectiveFrom time.Time    `toml:"effective_from"`
	Brackets      []TaxBracket `toml:"bracket"`
}

type catalogFile struct {
	Lines []catalogEntry `toml:"line"`
}

type catalogEntry struct {
	Code            string           `toml:"code"`
	Label           string           `toml:"label"`
	Category        string           `toml:"category"`
	BaseDescription string           `toml:"base_description"`
	Mode            string           `toml:"mode"`
	Formula         string           `toml:"formula"`
	Rate            *decimal.Decimal `toml:"rate"`
	RateBase        string           `toml:"rate_base"`
	Amount          *decimal.Decimal `toml:"amount"`
	Taxable         bool             `toml:"taxable"`
	Social          bool             `toml:"social"`
	Active          bool             `toml:"active"`
}

// ReadParameters decodes a TOML parameter file into a StaticProvider.
func ReadParameters(r io.Reader) (*StaticProvider, error) {
	var file parameterFile
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	provider := NewStaticProvider()
	for _, entry := range file.Parameters {
		code := strings.TrimSpace(entry.Code)
		if code == "" {
			return nil, fmt.Errorf("parameter entry without code")
		}
		provider.Set(entry.Organization, code, dateOnly(entry.EffectiveFrom), entry.Value)
	}
	for _, table := range file.BracketTables {
		if err := ValidateBrackets(table.Brackets); err != nil {
			return nil, fmt.Errorf("bracket table effective %s: %w", table.EffectiveFrom.Format("2006-01-02"), err)
		}
		provider.SetBrackets(table.Organization, dateOnly(table.EffectiveFrom), table.Brackets)
	}
	return provider, nil
}

// dateOnly drops the zone TOML attaches to local dates so that effective
// dates compare against period ends as calendar days.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func LoadParametersFile(path string) (*StaticProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadParameters(f)
}

// ReadCatalog decodes a TOML catalog file.
func ReadCatalog(r io.Reader) (*MemoryCatalog, error) {
	var file catalogFile
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	defs := make([]Definition, 0, len(file.Lines))
	for _, entry := range file.Lines {
		def, err := entry.definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return NewMemoryCatalog(defs...)
}

func LoadCatalogFile(path string) (*MemoryCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCatalog(f)
}

func (e catalogEntry) definition() (Definition, error) {
	mode, err := ParseMode(e.Mode, e.Formula, e.RateBase, e.Rate, e.Amount)
	if err != nil {
		return Definition{}, fmt.Errorf("pay line %s: %w", e.Code, err)
	}
	return Definition{
		Code:            strings.TrimSpace(e.Code),
		Label:           e.Label,
		Category:        Category(e.Category),
		BaseDescription: e.BaseDescription,
		Mode:            mode,
		Taxable:         e.Taxable,
		Social:          e.Social,
		Active:          e.Active,
	}, nil
}

// ParseMode builds the tagged mode from its stored columns.
func ParseMode(name, formula, rateBase string, rate, amount *decimal.Decimal) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "manual":
		return Manual{}, nil
	case "fixed":
		if amount == nil {
			return nil, fmt.Errorf("fixed mode requires an amount")
		}
		return Fixed{Amount: *amount}, nil
	case "rate":
		base := RateBase(rateBase)
		if base == "" {
			base = RateBaseSalary
		}
		switch base {
		case RateBaseSalary, RateBaseSocial, RateBaseFiscal, RateBaseGross:
		default:
			return nil, fmt.Errorf("unknown rate base %q", rateBase)
		}
		return Rate{Rate: rate, Base: base}, nil
	case "formula":
		ref := FormulaRef(formula)
		switch ref {
		case FormulaBaseSalary, FormulaSeniority, FormulaAbsence, FormulaSocialSecurity, FormulaHealthLevy, FormulaIncomeTax:
			return Formula{Ref: ref}, nil
		}
		return nil, fmt.Errorf("unknown formula %q", formula)
	}
	return nil, fmt.Errorf("unknown mode %q", name)
}

// ModeColumns is the inverse of ParseMode.
func ModeColumns(m Mode) (name, formula, rateBase string, rate, amount *decimal.Decimal) {
	switch v := m.(type) {
	case Fixed:
		a := v.Amount
		return "fixed", "", "", nil, &a
	case Rate:
		return "rate", "", string(v.Base), v.Rate, nil
	case Formula:
		return "formula", string(v.Ref), "", nil, nil
	}
	return "manual", "", "", nil, nil
}

var (
	defaultProvider = sync.OnceValue(func() *StaticProvider {
		provider, err := ReadParameters(strings.NewReader(defaultParametersTOML))
		if err != nil {
			panic(fmt.Sprintf("embedded default parameters: %v", err))
		}
		return provider
	})
	defaultCatalog = sync.OnceValue(func() *MemoryCatalog {
		catalog, err := ReadCatalog(strings.NewReader(defaultCatalogTOML))
		if err != nil {
			panic(fmt.Sprintf("embedded default catalog: %v", err))
		}
		return catalog
	})
)

// DefaultProvider returns the documented statutory defaults.
func DefaultProvider() *StaticProvider {
	return defaultProvider()
}

// DefaultCatalog returns the standard payslip template.
func DefaultCatalog() *MemoryCatalog {
	return defaultCatalog()
}
