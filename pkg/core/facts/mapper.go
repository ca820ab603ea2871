package facts

import (
	"fmt"
	"log"
	"sort"
	"time"

	"secfilings/pkg/core/config"
)

// StatementRow is one reporting period of a statement. Values holds only
// the concepts actually reported for that period: a missing key means "not
// reported", which is different from zero.
type StatementRow struct {
	PeriodEnd string             `json:"period_end"`
	Values    map[string]float64 `json:"values"`
}

// Statement is a pivoted financial statement: concepts in taxonomy order,
// rows sorted by period end ascending.
type Statement struct {
	Code     string         `json:"code"` // IS, BS, CF
	Concepts []string       `json:"concepts"`
	Rows     []StatementRow `json:"rows"`
}

// Statements bundles the three canonical statements for one entity.
type Statements struct {
	IncomeStatement *Statement `json:"income_statement,omitempty"`
	BalanceSheet    *Statement `json:"balance_sheet,omitempty"`
	CashFlow        *Statement `json:"cash_flow,omitempty"`
}

// FactSelector chooses one authoritative fact when a (concept, period-end)
// pair has several candidates, as happens when a later filing restates a
// prior period. Candidates is never empty.
type FactSelector func(candidates []Fact) Fact

// MostRecentlyFiled is the default selection policy: a later filing
// supersedes earlier ones for the same period. Filed-date ties fall back to
// the higher accession number so selection stays deterministic.
func MostRecentlyFiled(candidates []Fact) Fact {
	best := candidates[0]
	for _, f := range candidates[1:] {
		if f.Filed > best.Filed || (f.Filed == best.Filed && f.Accession > best.Accession) {
			best = f
		}
	}
	return best
}

// Duration bounds for recognizing standard reporting periods, in days.
// Fiscal calendars drift around month boundaries, so both carry slack.
const (
	annualMinDays  = 350
	annualMaxDays  = 380
	quarterMinDays = 76
	quarterMaxDays = 106
)

// Mapper builds canonical statements from an entity's fact set.
type Mapper struct {
	taxonomy config.Taxonomy
	units    []string
	selector FactSelector
	// fiscalYearEnd is the entity's declared year end as MMDD ("0930").
	// Empty means unknown; the duration filter then checks period length
	// only.
	fiscalYearEnd string
}

// MapperOption customizes a Mapper.
type MapperOption func(*Mapper)

// WithSelector overrides the restatement resolution policy.
func WithSelector(s FactSelector) MapperOption {
	return func(m *Mapper) { m.selector = s }
}

// WithFiscalYearEnd supplies the entity's declared fiscal year end (MMDD)
// so annual periods can be checked against the company's actual calendar.
func WithFiscalYearEnd(mmdd string) MapperOption {
	return func(m *Mapper) { m.fiscalYearEnd = mmdd }
}

// NewMapper creates a mapper using cfg's concept taxonomy and unit
// preference order.
func NewMapper(cfg config.Config, taxonomy config.Taxonomy, opts ...MapperOption) *Mapper {
	m := &Mapper{
		taxonomy: taxonomy,
		units:    cfg.PreferredUnits,
		selector: MostRecentlyFiled,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Extract builds the three canonical statements. A statement with no data
// at all is left nil rather than emitted empty.
func (m *Mapper) Extract(set *FactSet) (Statements, error) {
	if set == nil || len(set.Facts) == 0 {
		return Statements{}, fmt.Errorf("empty fact set")
	}

	out := Statements{
		IncomeStatement: m.buildStatement("IS", m.taxonomy.IncomeStatement, set),
		BalanceSheet:    m.buildStatement("BS", m.taxonomy.BalanceSheet, set),
		CashFlow:        m.buildStatement("CF", m.taxonomy.CashFlow, set),
	}
	if out.IncomeStatement == nil && out.BalanceSheet == nil && out.CashFlow == nil {
		return Statements{}, fmt.Errorf("no taxonomy concepts present in fact set for %s", set.EntityName)
	}

	log.Printf("[Facts] mapped statements for %s: IS=%s BS=%s CF=%s",
		set.EntityName,
		statementSize(out.IncomeStatement),
		statementSize(out.BalanceSheet),
		statementSize(out.CashFlow))
	return out, nil
}

// ExtractCustom builds a statement from an arbitrary concept list, skipping
// the canonical taxonomy. Returns nil if none of the concepts have data.
func (m *Mapper) ExtractCustom(set *FactSet, concepts []string) *Statement {
	if set == nil {
		return nil
	}
	return m.buildStatement("custom", concepts, set)
}

func statementSize(s *Statement) string {
	if s == nil {
		return "0"
	}
	return fmt.Sprintf("%dx%d", len(s.Rows), len(s.Concepts))
}

// buildStatement pivots the selected facts for one concept bucket into
// period rows. Concept column order follows the taxonomy listing, filtered
// to concepts that actually contributed data.
func (m *Mapper) buildStatement(code string, concepts []string, set *FactSet) *Statement {
	values := make(map[string]map[string]float64) // periodEnd -> concept -> value
	present := make(map[string]bool)

	for _, concept := range concepts {
		series := m.selectSeries(set.Concept(concept))
		for end, val := range series {
			if values[end] == nil {
				values[end] = make(map[string]float64)
			}
			values[end][concept] = val
			present[concept] = true
		}
	}

	if len(values) == 0 {
		return nil
	}

	kept := make([]string, 0, len(present))
	for _, c := range concepts {
		if present[c] {
			kept = append(kept, c)
		}
	}

	ends := make([]string, 0, len(values))
	for end := range values {
		ends = append(ends, end)
	}
	sort.Strings(ends)

	rows := make([]StatementRow, 0, len(ends))
	for _, end := range ends {
		rows = append(rows, StatementRow{PeriodEnd: end, Values: values[end]})
	}

	return &Statement{Code: code, Concepts: kept, Rows: rows}
}

// selectSeries reduces one concept's facts to an authoritative
// period-end -> value series: preferred unit only, standard reporting
// periods only, one fact per period chosen by the selection policy.
func (m *Mapper) selectSeries(candidates []Fact) map[string]float64 {
	unit := pickUnit(candidates, m.units)
	if unit == "" {
		return nil
	}

	byEnd := make(map[string][]Fact)
	for _, f := range candidates {
		if f.Unit != unit {
			continue
		}
		if !f.Instant() && !m.standardPeriod(f) {
			continue
		}
		byEnd[f.End] = append(byEnd[f.End], f)
	}

	series := make(map[string]float64, len(byEnd))
	for end, group := range byEnd {
		series[end] = m.selector(group).Value
	}
	return series
}

// pickUnit returns the first preferred unit that appears among the facts,
// falling back to the lexicographically smallest available unit.
func pickUnit(candidates []Fact, preferred []string) string {
	available := make(map[string]bool)
	for _, f := range candidates {
		available[f.Unit] = true
	}
	for _, u := range preferred {
		if available[u] {
			return u
		}
	}
	fallback := ""
	for u := range available {
		if fallback == "" || u < fallback {
			fallback = u
		}
	}
	return fallback
}

// standardPeriod reports whether a duration fact covers a full fiscal year
// or fiscal quarter. Partial and custom ranges (year-to-date spans,
// transition periods) are dropped so rows stay comparable across periods.
// When the entity's fiscal year end is known, annual periods must also end
// near it.
func (m *Mapper) standardPeriod(f Fact) bool {
	start, err := time.Parse("2006-01-02", f.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse("2006-01-02", f.End)
	if err != nil {
		return false
	}
	days := int(end.Sub(start).Hours() / 24)

	switch {
	case days >= annualMinDays && days <= annualMaxDays:
		if m.fiscalYearEnd == "" {
			return true
		}
		return nearFiscalYearEnd(end, m.fiscalYearEnd)
	case days >= quarterMinDays && days <= quarterMaxDays:
		return true
	default:
		return false
	}
}

// nearFiscalYearEnd checks that a period end falls within two weeks of the
// declared MMDD year end. 52/53-week fiscal calendars land on a nearby
// weekday rather than the exact declared date.
func nearFiscalYearEnd(end time.Time, mmdd string) bool {
	if len(mmdd) != 4 {
		return true
	}
	declared, err := time.Parse("0102", mmdd)
	if err != nil {
		return true
	}
	for _, year := range []int{end.Year() - 1, end.Year(), end.Year() + 1} {
		anchor := time.Date(year, declared.Month(), declared.Day(), 0, 0, 0, 0, time.UTC)
		diff := end.Sub(anchor)
		if diff < 0 {
			diff = -diff
		}
		if diff <= 14*24*time.Hour {
			return true
		}
	}
	return false
}
