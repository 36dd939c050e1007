package payroll

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type paramKey struct {
	organizationID string
	code           string
}

type datedValue struct {
	from  time.Time
	value decimal.Decimal
}

type datedTable struct {
	from     time.Time
	brackets []TaxBracket
}

// StaticProvider is an in-memory ParameterProvider. Values registered without
// an organization apply to every organization that has no value of its own.
type StaticProvider struct {
	mu     sync.RWMutex
	values map[paramKey][]datedValue
	tables map[string][]datedTable
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		values: map[paramKey][]datedValue{},
		tables: map[string][]datedTable{},
	}
}

func (p *StaticProvider) Set(organizationID, code string, from time.Time, value decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := paramKey{organizationID: organizationID, code: code}
	list := append(p.values[key], datedValue{from: from, value: value})
	sort.SliceStable(list, func(i, j int) bool { return list[i].from.Before(list[j].from) })
	p.values[key] = list
}

func (p *StaticProvider) SetBrackets(organizationID string, from time.Time, brackets []TaxBracket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := append(p.tables[organizationID], datedTable{from: from, brackets: slices.Clone(brackets)})
	sort.SliceStable(list, func(i, j int) bool { return list[i].from.Before(list[j].from) })
	p.tables[organizationID] = list
}

func (p *StaticProvider) Get(ctx context.Context, organizationID, code string, asOf time.Time) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, org := range scopes(organizationID) {
		if v, ok := latestValue(p.values[paramKey{organizationID: org, code: code}], asOf); ok {
			return v, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%s as of %s: %w", code, asOf.Format("2006-01-02"), ErrParameterNotFound)
}

func (p *StaticProvider) Brackets(ctx context.Context, organizationID string, asOf time.Time) ([]TaxBracket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, org := range scopes(organizationID) {
		list := p.tables[org]
		for i := len(list) - 1; i >= 0; i-- {
			if !list[i].from.After(asOf) {
				return slices.Clone(list[i].brackets), nil
			}
		}
	}
	return nil, fmt.Errorf("bracket table as of %s: %w", asOf.Format("2006-01-02"), ErrParameterNotFound)
}

// ParameterValue is one dated value held by a StaticProvider.
type ParameterValue struct {
	OrganizationID string
	Code           string
	EffectiveFrom  time.Time
	Value          decimal.Decimal
}

// BracketTable is one dated bracket table held by a StaticProvider.
type BracketTable struct {
	OrganizationID string
	EffectiveFrom  time.Time
	Brackets       []TaxBracket
}

// Values lists every registered value ordered by organization, code and date.
func (p *StaticProvider) Values() []ParameterValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []ParameterValue
	for key, list := range p.values {
		for _, v := range list {
			out = append(out, ParameterValue{OrganizationID: key.organizationID, Code: key.code, EffectiveFrom: v.from, Value: v.value})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrganizationID != out[j].OrganizationID {
			return out[i].OrganizationID < out[j].OrganizationID
		}
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].EffectiveFrom.Before(out[j].EffectiveFrom)
	})
	return out
}

func (p *StaticProvider) Tables() []BracketTable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []BracketTable
	for org, list := range p.tables {
		for _, table := range list {
			out = append(out, BracketTable{OrganizationID: org, EffectiveFrom: table.from, Brackets: slices.Clone(table.brackets)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrganizationID != out[j].OrganizationID {
			return out[i].OrganizationID < out[j].OrganizationID
		}
		return out[i].EffectiveFrom.Before(out[j].EffectiveFrom)
	})
	return out
}

func scopes(organizationID string) []string {
	if organizationID == "" {
		return []string{""}
	}
	return []string{organizationID, ""}
}

func latestValue(list []datedValue, asOf time.Time) (decimal.Decimal, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].from.After(asOf) {
			return list[i].value, true
		}
	}
	return decimal.Zero, false
}

// MemoryCatalog is an ordered, immutable set of definitions.
type MemoryCatalog struct {
	order []string
	defs  map[string]Definition
}

func NewMemoryCatalog(defs ...Definition) (*MemoryCatalog, error) {
	catalog := &MemoryCatalog{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if def.Code == "" {
			return nil, fmt.Errorf("pay line definition without code")
		}
		if !def.Category.Valid() {
			return nil, fmt.Errorf("pay line %s: unknown category %q", def.Code, def.Category)
		}
		if def.Mode == nil {
			def.Mode = Manual{}
		}
		if _, dup := catalog.defs[def.Code]; dup {
			return nil, fmt.Errorf("pay line %s defined twice", def.Code)
		}
		catalog.defs[def.Code] = def
		catalog.order = append(catalog.order, def.Code)
	}
	return catalog, nil
}

func (c *MemoryCatalog) Lookup(code string) (Definition, bool) {
	def, ok := c.defs[code]
	return def, ok
}

func (c *MemoryCatalog) Codes() []string {
	return slices.Clone(c.order)
}

func (c *MemoryCatalog) CatalogFor(context.Context, string) (Catalog, error) {
	return c, nil
}
