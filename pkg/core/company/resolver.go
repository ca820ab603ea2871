// Package company resolves ticker symbols to SEC entity identifiers.
package company

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"

	"secfilings/pkg/core/config"
)

const (
	companyTickersPath = "/files/company_tickers.json"
	tickerTextPath     = "/include/ticker.txt"
	submissionsPath    = "/submissions/CIK%s.json"
)

// Company is an immutable snapshot of a resolved entity.
type Company struct {
	CIK            string `json:"cik"` // 10-digit, zero padded
	Ticker         string `json:"ticker"`
	Name           string `json:"name"`
	SIC            string `json:"sic"`
	SICDescription string `json:"sic_description"`
	FiscalYearEnd  string `json:"fiscal_year_end"` // MMDD as reported by SEC
}

// TickerNotFoundError is returned when a ticker is absent from the SEC
// directory. Ticker carries the caller's exact input for user-facing
// messages.
type TickerNotFoundError struct {
	Ticker string
}

func (e *TickerNotFoundError) Error() string {
	return fmt.Sprintf("ticker %q not found in SEC database", e.Ticker)
}

// Fetcher is the slice of the access client the resolver needs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, v interface{}) error
	Get(ctx context.Context, url string) ([]byte, error)
}

// Resolver maps tickers to CIKs. The ticker directory is fetched once per
// resolver and held for its lifetime; resolved companies are memoized in an
// in-process cache keyed by normalized ticker.
type Resolver struct {
	fetcher Fetcher
	cfg     config.Config

	mu        sync.Mutex
	directory map[string]string // normalized ticker -> padded CIK

	companies *gocache.Cache
}

// NewResolver creates a resolver backed by the given access client.
func NewResolver(fetcher Fetcher, cfg config.Config) *Resolver {
	return &Resolver{
		fetcher:   fetcher,
		cfg:       cfg,
		companies: gocache.New(gocache.NoExpiration, 0),
	}
}

// Resolve maps a ticker to its CIK. Lookup is case-insensitive. The
// returned Company carries only identifier fields; use Info for entity
// metadata.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (Company, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	if normalized == "" {
		return Company{}, fmt.Errorf("ticker must not be empty")
	}

	cik, err := r.lookupCIK(ctx, ticker, normalized)
	if err != nil {
		return Company{}, err
	}
	return Company{CIK: cik, Ticker: normalized}, nil
}

// Info resolves a ticker and additionally fetches entity metadata from the
// submissions API. Results are cached for the resolver's lifetime.
func (r *Resolver) Info(ctx context.Context, ticker string) (Company, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	if cached, ok := r.companies.Get(normalized); ok {
		return cached.(Company), nil
	}

	resolved, err := r.Resolve(ctx, ticker)
	if err != nil {
		return Company{}, err
	}

	var sub struct {
		Name           string `json:"name"`
		SIC            string `json:"sic"`
		SICDescription string `json:"sicDescription"`
		FiscalYearEnd  string `json:"fiscalYearEnd"`
	}
	url := r.cfg.APIBase + fmt.Sprintf(submissionsPath, resolved.CIK)
	if err := r.fetcher.GetJSON(ctx, url, &sub); err != nil {
		return Company{}, fmt.Errorf("failed to fetch entity metadata for %s: %w", normalized, err)
	}

	resolved.Name = sub.Name
	resolved.SIC = sub.SIC
	resolved.SICDescription = sub.SICDescription
	resolved.FiscalYearEnd = sub.FiscalYearEnd

	r.companies.Set(normalized, resolved, gocache.NoExpiration)
	return resolved, nil
}

// lookupCIK consults the memoized directory, loading it on first use.
// original is the caller's input, preserved for the not-found error.
func (r *Resolver) lookupCIK(ctx context.Context, original, normalized string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cik, ok := r.directory[normalized]; ok {
		return cik, nil
	}

	if r.directory == nil {
		if err := r.loadDirectory(ctx); err != nil {
			return "", err
		}
		if cik, ok := r.directory[normalized]; ok {
			return cik, nil
		}
	}

	// Fallback: the pipe-delimited ticker.txt covers a few symbols the
	// JSON directory misses.
	if cik, ok := r.lookupFromText(ctx, normalized); ok {
		r.directory[normalized] = cik
		return cik, nil
	}

	return "", &TickerNotFoundError{Ticker: original}
}

// loadDirectory fetches company_tickers.json and builds the lookup table.
// Format: {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
func (r *Resolver) loadDirectory(ctx context.Context) error {
	log.Printf("[Resolver] loading ticker directory from SEC")

	type entry struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	var raw map[string]entry
	url := r.cfg.FilesBase + companyTickersPath
	if err := r.fetcher.GetJSON(ctx, url, &raw); err != nil {
		return fmt.Errorf("failed to fetch ticker directory: %w", err)
	}

	r.directory = make(map[string]string, len(raw))
	for _, e := range raw {
		r.directory[strings.ToUpper(e.Ticker)] = PadCIK(strconv.Itoa(e.CIK))
	}

	log.Printf("[Resolver] loaded %d tickers", len(r.directory))
	return nil
}

// lookupFromText scans the ticker.txt fallback mapping. Failures here are
// logged and treated as a miss; the JSON directory is authoritative.
func (r *Resolver) lookupFromText(ctx context.Context, normalized string) (string, bool) {
	body, err := r.fetcher.Get(ctx, r.cfg.FilesBase+tickerTextPath)
	if err != nil {
		log.Printf("[Resolver] ticker.txt fallback unavailable: %v", err)
		return "", false
	}

	for _, line := range strings.Split(string(body), "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "|", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(parts[0], normalized) {
			return PadCIK(parts[1]), true
		}
	}
	return "", false
}

// PadCIK normalizes a CIK to the archive's 10-digit zero-padded form.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	cik = strings.TrimLeft(cik, "0")
	if cik == "" {
		cik = "0"
	}
	return fmt.Sprintf("%010s", cik)
}
