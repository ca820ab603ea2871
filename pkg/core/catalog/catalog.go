// Package catalog lists and filters an entity's disclosed filings.
package catalog

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"secfilings/pkg/core/config"
)

const submissionsPath = "/submissions/CIK%s.json"

// Filing identifies one submitted document package. Read-only once produced.
type Filing struct {
	AccessionNumber string `json:"accession_number"` // NNNNNNNNNN-YY-NNNNNN
	Form            string `json:"form"`
	FilingDate      string `json:"filing_date"` // YYYY-MM-DD
	PrimaryDocument string `json:"primary_document"`
	CIK             string `json:"cik"`
	CompanyName     string `json:"company_name"`
}

// AccessionNoDashes returns the accession number in archive-path form.
func (f Filing) AccessionNoDashes() string {
	return strings.ReplaceAll(f.AccessionNumber, "-", "")
}

func (f Filing) String() string {
	return fmt.Sprintf("%s | %s | %s", f.Form, f.FilingDate, f.AccessionNumber)
}

// FilingNotFoundError is returned when a filter yields no filings. This is
// a normal outcome for entities that never filed the requested form types,
// not a network failure.
type FilingNotFoundError struct {
	CIK   string
	Forms []string
}

func (e *FilingNotFoundError) Error() string {
	if len(e.Forms) == 0 {
		return fmt.Sprintf("no filings found for CIK %s", e.CIK)
	}
	return fmt.Sprintf("no filings found for CIK %s with types %v", e.CIK, e.Forms)
}

// Fetcher is the slice of the access client the catalog needs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, v interface{}) error
}

// Catalog fetches and filters an entity's submission history.
type Catalog struct {
	fetcher Fetcher
	cfg     config.Config
}

// New creates a catalog backed by the given access client.
func New(fetcher Fetcher, cfg config.Config) *Catalog {
	return &Catalog{fetcher: fetcher, cfg: cfg}
}

// submissionsResponse mirrors the column-oriented layout of the SEC
// submissions API: parallel arrays indexed together.
type submissionsResponse struct {
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// List returns up to limit filings for cik, filtered to the given form
// types (empty slice = no filter), sorted by filing date descending with
// ties broken by accession number descending.
func (c *Catalog) List(ctx context.Context, cik string, formTypes []string, limit int) ([]Filing, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("catalog: limit must be positive, got %d", limit)
	}

	url := c.cfg.APIBase + fmt.Sprintf(submissionsPath, cik)
	var resp submissionsResponse
	if err := c.fetcher.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch submissions for CIK %s: %w", cik, err)
	}

	recent := resp.Filings.Recent
	wanted := make(map[string]bool, len(formTypes))
	for _, ft := range formTypes {
		wanted[strings.ToUpper(ft)] = true
	}

	var filings []Filing
	for i, form := range recent.Form {
		if len(wanted) > 0 && !wanted[strings.ToUpper(form)] {
			continue
		}
		// Parallel arrays can be ragged in malformed responses; skip
		// entries with missing columns rather than panic.
		if i >= len(recent.AccessionNumber) || i >= len(recent.FilingDate) || i >= len(recent.PrimaryDocument) {
			continue
		}
		filings = append(filings, Filing{
			AccessionNumber: recent.AccessionNumber[i],
			Form:            form,
			FilingDate:      recent.FilingDate[i],
			PrimaryDocument: recent.PrimaryDocument[i],
			CIK:             cik,
			CompanyName:     resp.Name,
		})
	}

	if len(filings) == 0 {
		return nil, &FilingNotFoundError{CIK: cik, Forms: formTypes}
	}

	// Filing date descending; accession number descending on ties, which
	// is chronological for this identifier format.
	sort.Slice(filings, func(i, j int) bool {
		if filings[i].FilingDate != filings[j].FilingDate {
			return filings[i].FilingDate > filings[j].FilingDate
		}
		return filings[i].AccessionNumber > filings[j].AccessionNumber
	})

	if len(filings) > limit {
		filings = filings[:limit]
	}

	log.Printf("[Catalog] %d filings for CIK %s (forms=%v, limit=%d)", len(filings), cik, formTypes, limit)
	return filings, nil
}
