package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"
)

// Taxonomy maps US-GAAP concept names into the three canonical statement
// buckets. Concepts listed here drive statement assembly; anything else is
// only reachable through custom concept extraction.
type Taxonomy struct {
	IncomeStatement []string `yaml:"income_statement" json:"income_statement"`
	BalanceSheet    []string `yaml:"balance_sheet" json:"balance_sheet"`
	CashFlow        []string `yaml:"cash_flow" json:"cash_flow"`
}

// DefaultTaxonomy returns the built-in concept membership table.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		IncomeStatement: []string{
			"Revenues",
			"SalesRevenueNet",
			"CostOfRevenue",
			"GrossProfit",
			"OperatingExpenses",
			"ResearchAndDevelopmentExpense",
			"SellingGeneralAndAdministrativeExpense",
			"OperatingIncomeLoss",
			"InterestExpense",
			"IncomeTaxExpenseBenefit",
			"NetIncomeLoss",
		},
		BalanceSheet: []string{
			"Assets",
			"AssetsCurrent",
			"Liabilities",
			"LiabilitiesCurrent",
			"StockholdersEquity",
			"StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest",
			"RetainedEarningsAccumulatedDeficit",
			"CashAndCashEquivalentsAtCarryingValue",
			"InventoryNet",
			"CommonStockSharesOutstanding",
		},
		CashFlow: []string{
			"NetCashProvidedByUsedInOperatingActivities",
			"NetCashProvidedByUsedInInvestingActivities",
			"NetCashProvidedByUsedInFinancingActivities",
			"PaymentsToAcquirePropertyPlantAndEquipment",
			"DepreciationDepletionAndAmortization",
			"PaymentsForRepurchaseOfCommonStock",
			"ProceedsFromIssuanceOfLongTermDebt",
			"RepaymentsOfLongTermDebt",
			"PaymentsOfDividends",
		},
	}
}

// Bucket returns the concept list for a statement code ("IS", "BS", "CF").
func (t Taxonomy) Bucket(code string) []string {
	switch strings.ToUpper(code) {
	case "IS":
		return t.IncomeStatement
	case "BS":
		return t.BalanceSheet
	case "CF":
		return t.CashFlow
	}
	return nil
}

// Contains reports whether concept belongs to any canonical bucket.
func (t Taxonomy) Contains(concept string) bool {
	for _, bucket := range [][]string{t.IncomeStatement, t.BalanceSheet, t.CashFlow} {
		for _, c := range bucket {
			if c == concept {
				return true
			}
		}
	}
	return false
}

// LoadTaxonomy reads a taxonomy override from a YAML or HJSON file and
// merges it over the defaults. Only buckets present in the file replace
// their defaults; omitted buckets keep the built-in list.
func LoadTaxonomy(path string) (Taxonomy, error) {
	base := DefaultTaxonomy()

	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	var override Taxonomy
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return base, fmt.Errorf("failed to parse taxonomy YAML: %w", err)
		}
	case ".hjson":
		// HJSON allows comments in the override file. Round-trip through
		// plain JSON so struct tags apply.
		var generic map[string]interface{}
		if err := hjson.Unmarshal(data, &generic); err != nil {
			return base, fmt.Errorf("failed to parse taxonomy HJSON: %w", err)
		}
		jsonBytes, err := json.Marshal(generic)
		if err != nil {
			return base, fmt.Errorf("failed to normalize taxonomy HJSON: %w", err)
		}
		if err := json.Unmarshal(jsonBytes, &override); err != nil {
			return base, fmt.Errorf("failed to decode taxonomy HJSON: %w", err)
		}
	default:
		return base, fmt.Errorf("unsupported taxonomy file extension: %s", filepath.Ext(path))
	}

	if len(override.IncomeStatement) > 0 {
		base.IncomeStatement = override.IncomeStatement
	}
	if len(override.BalanceSheet) > 0 {
		base.BalanceSheet = override.BalanceSheet
	}
	if len(override.CashFlow) > 0 {
		base.CashFlow = override.CashFlow
	}
	return base, nil
}
