package company

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"secfilings/pkg/core/config"
)

// fakeFetcher serves canned responses keyed by URL suffix.
type fakeFetcher struct {
	responses map[string]string // path suffix -> body
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]string),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	for suffix, body := range f.responses {
		if strings.HasSuffix(url, suffix) || strings.Contains(url, suffix) {
			f.calls[suffix]++
			return []byte(body), nil
		}
	}
	return nil, fmt.Errorf("unexpected URL: %s", url)
}

func (f *fakeFetcher) GetJSON(ctx context.Context, url string, v interface{}) error {
	body, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

const directoryJSON = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
	"1": {"cik_str": 789019, "ticker": "MSFT", "title": "Microsoft Corp"}
}`

func newTestResolver() (*Resolver, *fakeFetcher) {
	f := newFakeFetcher()
	f.responses["company_tickers.json"] = directoryJSON
	return NewResolver(f, config.Default()), f
}

func TestResolve_CaseInsensitiveAndDeterministic(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	lower, err := r.Resolve(ctx, "aapl")
	if err != nil {
		t.Fatalf("Resolve(aapl) failed: %v", err)
	}
	upper, err := r.Resolve(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Resolve(AAPL) failed: %v", err)
	}
	if lower.CIK != upper.CIK {
		t.Errorf("case-sensitive resolution: %s != %s", lower.CIK, upper.CIK)
	}
	if lower.CIK != "0000320193" {
		t.Errorf("CIK = %s, want 0000320193", lower.CIK)
	}
}

func TestResolve_DirectoryFetchedOnce(t *testing.T) {
	r, f := newTestResolver()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := r.Resolve(ctx, "MSFT"); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.calls["company_tickers.json"]; n != 1 {
		t.Errorf("directory fetched %d times, want 1", n)
	}
}

func TestResolve_UnknownTickerNamesOriginalInput(t *testing.T) {
	r, f := newTestResolver()
	f.responses["ticker.txt"] = "aapl|320193\n"

	_, err := r.Resolve(context.Background(), "zzzz")
	var notFound *TickerNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected TickerNotFoundError, got %T: %v", err, err)
	}
	// The error must name what the user typed, not the normalized form.
	if notFound.Ticker != "zzzz" {
		t.Errorf("error ticker = %q, want %q", notFound.Ticker, "zzzz")
	}
}

func TestResolve_TextFallback(t *testing.T) {
	r, f := newTestResolver()
	f.responses["ticker.txt"] = "brk-b|1067983\n"

	c, err := r.Resolve(context.Background(), "BRK-B")
	if err != nil {
		t.Fatalf("Resolve via text fallback failed: %v", err)
	}
	if c.CIK != "0001067983" {
		t.Errorf("CIK = %s, want 0001067983", c.CIK)
	}
}

func TestInfo_FetchesEntityMetadata(t *testing.T) {
	r, f := newTestResolver()
	f.responses["submissions/CIK0000320193.json"] = `{
		"name": "Apple Inc.",
		"sic": "3571",
		"sicDescription": "Electronic Computers",
		"fiscalYearEnd": "0927"
	}`

	c, err := r.Info(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if c.Name != "Apple Inc." || c.SIC != "3571" || c.FiscalYearEnd != "0927" {
		t.Errorf("unexpected company: %+v", c)
	}

	// Second call must come from the cache.
	if _, err := r.Info(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if n := f.calls["submissions/CIK0000320193.json"]; n != 1 {
		t.Errorf("submissions fetched %d times, want 1", n)
	}
}

func TestPadCIK(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"320193", "0000320193"},
		{"0000320193", "0000320193"},
		{"1", "0000000001"},
		{"0", "0000000000"},
	}
	for _, tc := range tests {
		if got := PadCIK(tc.in); got != tc.want {
			t.Errorf("PadCIK(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
