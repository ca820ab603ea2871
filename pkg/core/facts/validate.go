package facts

import (
	"fmt"
	"math"
)

// balanceTolerancePct allows small rounding drift in reported figures.
const balanceTolerancePct = 0.1

// Validate checks the accounting identities the mapped data allows,
// currently Assets = Liabilities + Equity per balance sheet period.
// Reported XBRL data should balance; drift beyond tolerance usually means a
// taxonomy gap or a mis-selected restatement, so findings are returned as
// human-readable warnings rather than errors.
func (s Statements) Validate() []string {
	if s.BalanceSheet == nil {
		return nil
	}
	var findings []string
	for _, row := range s.BalanceSheet.Rows {
		assets, okA := row.Values["Assets"]
		liabilities, okL := row.Values["Liabilities"]
		equity, okE := equityValue(row.Values)
		if !okA || !okL || !okE || assets == 0 {
			continue
		}
		diff := math.Abs(assets - (liabilities + equity))
		pct := diff / math.Abs(assets) * 100
		if pct > balanceTolerancePct {
			findings = append(findings, fmt.Sprintf(
				"balance sheet %s: assets %.0f != liabilities+equity %.0f (%.2f%% off)",
				row.PeriodEnd, assets, liabilities+equity, pct))
		}
	}
	return findings
}

// equityValue prefers the consolidated equity concept when both are
// reported.
func equityValue(values map[string]float64) (float64, bool) {
	if v, ok := values["StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest"]; ok {
		return v, true
	}
	v, ok := values["StockholdersEquity"]
	return v, ok
}
