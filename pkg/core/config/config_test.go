package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.RequestInterval != 200*time.Millisecond {
		t.Errorf("RequestInterval = %v", cfg.RequestInterval)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.MinTableColumns != 2 || cfg.MaxTablesPerFile != 200 {
		t.Errorf("table limits = %d/%d", cfg.MinTableColumns, cfg.MaxTablesPerFile)
	}
	if cfg.UserAgent == "" {
		t.Error("default user agent empty")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SEC_USER_AGENT", "research team research@example.com")
	t.Setenv("SEC_REQUEST_INTERVAL_MS", "500")
	t.Setenv("SEC_MAX_RETRIES", "5")
	t.Setenv("SEC_OUTPUT_DIR", "/tmp/filings")

	cfg := FromEnv()
	if cfg.UserAgent != "research team research@example.com" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.RequestInterval != 500*time.Millisecond {
		t.Errorf("RequestInterval = %v", cfg.RequestInterval)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.OutputDir != "/tmp/filings" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
}

func TestFromEnv_BadNumbersKeepDefaults(t *testing.T) {
	t.Setenv("SEC_REQUEST_INTERVAL_MS", "not-a-number")
	t.Setenv("SEC_MAX_RETRIES", "-2")

	cfg := FromEnv()
	if cfg.RequestInterval != 200*time.Millisecond {
		t.Errorf("RequestInterval = %v, want default", cfg.RequestInterval)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default", cfg.MaxRetries)
	}
}

func TestTaxonomy_Bucket(t *testing.T) {
	taxonomy := DefaultTaxonomy()

	if got := taxonomy.Bucket("is"); !reflect.DeepEqual(got, taxonomy.IncomeStatement) {
		t.Error("Bucket should be case-insensitive")
	}
	if got := taxonomy.Bucket("XX"); got != nil {
		t.Errorf("unknown bucket = %v, want nil", got)
	}
}

func TestTaxonomy_Contains(t *testing.T) {
	taxonomy := DefaultTaxonomy()
	if !taxonomy.Contains("Revenues") || !taxonomy.Contains("Assets") {
		t.Error("canonical concepts missing")
	}
	if taxonomy.Contains("MadeUpConcept") {
		t.Error("unknown concept reported present")
	}
}

func TestLoadTaxonomy_YAMLOverridesOneBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	body := "income_statement:\n  - Revenues\n  - CustomRevenueConcept\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	taxonomy, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("LoadTaxonomy failed: %v", err)
	}
	want := []string{"Revenues", "CustomRevenueConcept"}
	if !reflect.DeepEqual(taxonomy.IncomeStatement, want) {
		t.Errorf("IncomeStatement = %v, want %v", taxonomy.IncomeStatement, want)
	}
	// Omitted buckets keep the defaults.
	if !reflect.DeepEqual(taxonomy.BalanceSheet, DefaultTaxonomy().BalanceSheet) {
		t.Error("BalanceSheet should keep defaults")
	}
}

func TestLoadTaxonomy_HJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.hjson")
	body := `{
		# cash flow focus only
		cash_flow: [
			NetCashProvidedByUsedInOperatingActivities
		]
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	taxonomy, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("LoadTaxonomy failed: %v", err)
	}
	if len(taxonomy.CashFlow) != 1 {
		t.Errorf("CashFlow = %v", taxonomy.CashFlow)
	}
}

func TestLoadTaxonomy_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTaxonomy(path); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
