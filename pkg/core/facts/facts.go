// Package facts assembles financial statements from XBRL company facts.
// Facts arrive as the full tagged history for an entity; the mapper
// partitions them into the three canonical statements, resolves restated
// values and pivots them into per-period rows.
package facts

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Fact is one reported value tagged with an accounting concept and period.
// Start is empty for instant facts (balance sheet items); duration facts
// (income and cash flow items) carry both Start and End.
type Fact struct {
	Concept      string  `json:"concept"`
	Unit         string  `json:"unit"`
	Start        string  `json:"start,omitempty"` // YYYY-MM-DD, empty for instants
	End          string  `json:"end"`             // YYYY-MM-DD
	Value        float64 `json:"value"`
	Accession    string  `json:"accession"`
	Form         string  `json:"form"`
	Filed        string  `json:"filed"` // YYYY-MM-DD of the reporting filing
	FiscalYear   int     `json:"fiscal_year,omitempty"`
	FiscalPeriod string  `json:"fiscal_period,omitempty"` // FY, Q1..Q4
}

// Instant reports whether the fact measures a point in time rather than a
// duration.
func (f Fact) Instant() bool { return f.Start == "" }

// FactSet is the parsed company facts payload for one entity.
type FactSet struct {
	CIK        int    `json:"cik"`
	EntityName string `json:"entityName"`
	Facts      []Fact `json:"facts"`

	byConcept map[string][]Fact
}

// Concept returns all facts for one concept name, in payload order.
func (s *FactSet) Concept(name string) []Fact {
	if s.byConcept == nil {
		s.byConcept = make(map[string][]Fact)
		for _, f := range s.Facts {
			s.byConcept[f.Concept] = append(s.byConcept[f.Concept], f)
		}
	}
	return s.byConcept[name]
}

// companyFactsResponse mirrors the companyfacts API payload: concepts keyed
// by taxonomy, observations grouped per unit.
type companyFactsResponse struct {
	CIK        int    `json:"cik"`
	EntityName string `json:"entityName"`
	Facts      map[string]map[string]struct {
		Label string `json:"label"`
		Units map[string][]observation `json:"units"`
	} `json:"facts"`
}

type observation struct {
	Start string      `json:"start"`
	End   string      `json:"end"`
	Val   json.Number `json:"val"`
	FY    int         `json:"fy"`
	FP    string      `json:"fp"`
	Accn  string      `json:"accn"`
	Form  string      `json:"form"`
	Filed string      `json:"filed"`
}

// ParseCompanyFacts flattens a raw companyfacts payload into a FactSet.
// Concepts from the us-gaap taxonomy are used when present; payloads
// without a us-gaap block fall back to whatever taxonomies they carry.
// Observations with no usable value or period end are skipped.
func ParseCompanyFacts(raw []byte) (*FactSet, error) {
	var resp companyFactsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing company facts: %w", err)
	}

	taxonomies := make([]string, 0, len(resp.Facts))
	if _, ok := resp.Facts["us-gaap"]; ok {
		taxonomies = append(taxonomies, "us-gaap")
	} else {
		for name := range resp.Facts {
			taxonomies = append(taxonomies, name)
		}
	}

	set := &FactSet{CIK: resp.CIK, EntityName: resp.EntityName}
	for _, taxonomy := range taxonomies {
		for concept, body := range resp.Facts[taxonomy] {
			for unit, observations := range body.Units {
				for _, obs := range observations {
					if obs.End == "" {
						continue
					}
					val, err := obs.Val.Float64()
					if err != nil {
						continue
					}
					set.Facts = append(set.Facts, Fact{
						Concept:      concept,
						Unit:         unit,
						Start:        obs.Start,
						End:          obs.End,
						Value:        val,
						Accession:    obs.Accn,
						Form:         obs.Form,
						Filed:        obs.Filed,
						FiscalYear:   obs.FY,
						FiscalPeriod: obs.FP,
					})
				}
			}
		}
	}

	if len(set.Facts) == 0 {
		return nil, fmt.Errorf("no facts found in company facts payload")
	}

	// Map iteration order is random; sort so identical payloads always
	// produce identical fact sets.
	sort.Slice(set.Facts, func(i, j int) bool {
		a, b := set.Facts[i], set.Facts[j]
		if a.Concept != b.Concept {
			return a.Concept < b.Concept
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		return a.Accession < b.Accession
	})
	return set, nil
}
