package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"secfilings/pkg/core/pipeline"
)

// ResultCache stores per-filing extraction results keyed by accession
// number, so repeat runs skip filings already processed. DB is primary
// when a pool is configured; otherwise results live as JSON files.
type ResultCache struct {
	pool    *pgxpool.Pool
	fileDir string
}

var _ pipeline.FilingCache = (*ResultCache)(nil)

// NewResultCache creates a cache. If pool is nil and dir is empty, a
// default local cache directory is used.
func NewResultCache(pool *pgxpool.Pool, dir string) *ResultCache {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "filings", "extractions")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("[Cache] cannot create cache dir %s: %v", dir, err)
		}
	}
	return &ResultCache{pool: pool, fileDir: dir}
}

// cacheEntry wraps a filing result with lookup metadata for the file
// backend.
type cacheEntry struct {
	AccessionNumber string                 `json:"accession_number"`
	CIK             string                 `json:"cik"`
	Form            string                 `json:"form"`
	FilingDate      string                 `json:"filing_date"`
	Result          *pipeline.FilingResult `json:"result"`
	ExtractedAt     time.Time              `json:"extracted_at"`
}

// Get retrieves a cached filing result, or nil on a miss. Misses are never
// errors.
func (c *ResultCache) Get(ctx context.Context, accessionNumber string) (*pipeline.FilingResult, error) {
	if c.pool != nil {
		var resultJSON []byte
		err := c.pool.QueryRow(ctx, `
			SELECT result FROM filing_extractions WHERE accession_number = $1 LIMIT 1
		`, accessionNumber).Scan(&resultJSON)
		if err != nil {
			return nil, nil
		}
		var result pipeline.FilingResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("decoding cached result for %s: %w", accessionNumber, err)
		}
		return &result, nil
	}

	if c.fileDir != "" {
		raw, err := os.ReadFile(c.accessionPath(accessionNumber))
		if err != nil {
			return nil, nil
		}
		var entry cacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("decoding cached result for %s: %w", accessionNumber, err)
		}
		return entry.Result, nil
	}

	return nil, nil
}

// Save stores one filing's extraction result.
func (c *ResultCache) Save(ctx context.Context, result *pipeline.FilingResult) error {
	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if c.pool != nil {
		_, err := c.pool.Exec(ctx, `
			INSERT INTO filing_extractions (accession_number, cik, form, filing_date, result)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (accession_number)
			DO UPDATE SET result = EXCLUDED.result, updated_at = NOW()
		`, result.Filing.AccessionNumber, result.Filing.CIK,
			result.Filing.Form, result.Filing.FilingDate, resultJSON)
		if err != nil {
			return fmt.Errorf("saving result for %s: %w", result.Filing.AccessionNumber, err)
		}
	}

	if c.fileDir != "" {
		entry := cacheEntry{
			AccessionNumber: result.Filing.AccessionNumber,
			CIK:             result.Filing.CIK,
			Form:            result.Filing.Form,
			FilingDate:      result.Filing.FilingDate,
			Result:          result,
			ExtractedAt:     time.Now(),
		}
		raw, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding cache entry: %w", err)
		}
		if err := os.WriteFile(c.accessionPath(result.Filing.AccessionNumber), raw, 0o644); err != nil {
			return fmt.Errorf("writing cache entry: %w", err)
		}
	}

	return nil
}

// Exists reports whether a filing already has a cached result.
func (c *ResultCache) Exists(ctx context.Context, accessionNumber string) bool {
	if c.pool != nil {
		var one int
		if err := c.pool.QueryRow(ctx, `
			SELECT 1 FROM filing_extractions WHERE accession_number = $1 LIMIT 1
		`, accessionNumber).Scan(&one); err == nil {
			return true
		}
	}
	if c.fileDir != "" {
		if _, err := os.Stat(c.accessionPath(accessionNumber)); err == nil {
			return true
		}
	}
	return false
}

func (c *ResultCache) accessionPath(accession string) string {
	return filepath.Join(c.fileDir, strings.ReplaceAll(accession, "-", "")+".json")
}
