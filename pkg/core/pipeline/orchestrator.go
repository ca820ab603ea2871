// Package pipeline sequences the extraction run: resolve the company, list
// its filings, materialize documents and fact sets, then run each content
// extractor. Extractors are independent; one failing never aborts its
// siblings, and the run fails only when every extractor fails.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"secfilings/pkg/core/catalog"
	"secfilings/pkg/core/client"
	"secfilings/pkg/core/company"
	"secfilings/pkg/core/config"
	"secfilings/pkg/core/download"
	"secfilings/pkg/core/extract"
	"secfilings/pkg/core/facts"
)

// FilingResult holds the extracted content for one filing. Errors are the
// per-extractor failures recorded instead of raised.
type FilingResult struct {
	Filing   catalog.Filing             `json:"filing"`
	Document string                     `json:"document,omitempty"` // local path extractors read
	Tables   []extract.ExtractedTable   `json:"tables,omitempty"`
	Sections map[string]extract.Section `json:"sections,omitempty"`
	Errors   map[string]string          `json:"errors,omitempty"` // extractor name -> failure
}

// Result is the output of one pipeline run.
type Result struct {
	RunID      string           `json:"run_id"`
	Company    company.Company  `json:"company"`
	Filings    []FilingResult   `json:"filings"`
	Statements facts.Statements `json:"statements"`
	RawFacts   *facts.FactSet   `json:"-"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	// Errors holds run-level extractor failures (the facts mapper operates
	// per company, not per filing).
	Errors map[string]string `json:"errors,omitempty"`
	// Warnings holds accounting identity findings on the mapped statements.
	Warnings []string `json:"warnings,omitempty"`
}

// Failed reports whether the run produced no extracted content at all while
// at least one failure was recorded, run-level or per-filing. Skipped stages
// record no failures, so a facts-only or documents-only run is judged on
// what actually ran.
func (r *Result) Failed() bool {
	if r.Statements.IncomeStatement != nil || r.Statements.BalanceSheet != nil ||
		r.Statements.CashFlow != nil {
		return false
	}
	failures := len(r.Errors)
	for _, fr := range r.Filings {
		if len(fr.Tables) > 0 || len(fr.Sections) > 0 {
			return false
		}
		failures += len(fr.Errors)
	}
	return failures > 0
}

// FilingCache lets repeat runs reuse extraction results for filings already
// processed. The store package's result cache implements it.
type FilingCache interface {
	Get(ctx context.Context, accessionNumber string) (*FilingResult, error)
	Save(ctx context.Context, result *FilingResult) error
}

// Orchestrator wires the resolver, catalog, downloader and extractors
// behind one entry point.
type Orchestrator struct {
	cfg        config.Config
	resolver   *company.Resolver
	catalog    *catalog.Catalog
	downloader *download.Downloader
	tables     *extract.TableExtractor
	sections   *extract.SectionExtractor
	client     *client.Client
	taxonomy   config.Taxonomy
	cache      FilingCache
}

// New builds an orchestrator and its full dependency chain from cfg. All
// network access flows through one shared client so the inter-request
// interval is enforced across every component.
func New(cfg config.Config, taxonomy config.Taxonomy) (*Orchestrator, error) {
	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:        cfg,
		resolver:   company.NewResolver(c, cfg),
		catalog:    catalog.New(c, cfg),
		downloader: download.New(c, cfg),
		tables:     extract.NewTableExtractor(cfg),
		sections:   extract.NewSectionExtractor(),
		client:     c,
		taxonomy:   taxonomy,
	}, nil
}

// UseCache attaches a filing result cache. Filings with a clean cached
// result skip download and extraction on later runs.
func (o *Orchestrator) UseCache(cache FilingCache) {
	o.cache = cache
}

// RunOptions selects what one pipeline run covers.
type RunOptions struct {
	Forms           []string // empty = all supported forms
	Limit           int
	OutputDir       string // empty = cfg.OutputDir
	IncludeExhibits bool
	SkipFacts       bool // document extraction only
	SkipDocuments   bool // fact mapping only
}

// Run executes the pipeline for one ticker. Resolution, listing and
// download failures are fatal; extraction failures are recorded per
// extractor in the result.
func (o *Orchestrator) Run(ctx context.Context, ticker string, opts RunOptions) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Errors:    make(map[string]string),
	}
	log.Printf("[Pipeline] run %s: ticker=%s forms=%v limit=%d", result.RunID, ticker, opts.Forms, opts.Limit)

	comp, err := o.resolver.Info(ctx, ticker)
	if err != nil {
		return nil, err
	}
	result.Company = comp

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}
	forms := opts.Forms
	if len(forms) == 0 {
		forms = o.cfg.SupportedForms
	}
	filings, err := o.catalog.List(ctx, comp.CIK, forms, limit)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = o.cfg.OutputDir
	}

	if !opts.SkipDocuments {
		for _, filing := range filings {
			result.Filings = append(result.Filings, o.processFiling(ctx, filing, outputDir, opts.IncludeExhibits))
		}
	}

	if !opts.SkipFacts {
		o.mapFacts(ctx, comp, result)
	}

	result.FinishedAt = time.Now()
	if result.Failed() {
		return result, fmt.Errorf("all extractors failed for %s (run %s)", ticker, result.RunID)
	}
	log.Printf("[Pipeline] run %s finished in %v", result.RunID, result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

// processFiling downloads one filing package and runs the document
// extractors on its preferred view file. Each extractor's failure is
// recorded without touching the other's output.
func (o *Orchestrator) processFiling(ctx context.Context, filing catalog.Filing, outputDir string, includeExhibits bool) FilingResult {
	fr := FilingResult{Filing: filing, Errors: make(map[string]string)}

	if o.cache != nil {
		cached, err := o.cache.Get(ctx, filing.AccessionNumber)
		if err != nil {
			log.Printf("[Pipeline] %s: cache read failed: %v", filing.AccessionNumber, err)
		} else if cached != nil && len(cached.Errors) == 0 {
			log.Printf("[Pipeline] %s: reusing cached extraction", filing.AccessionNumber)
			return *cached
		}
	}

	if _, err := o.downloader.Download(ctx, filing, outputDir, includeExhibits); err != nil {
		fr.Errors["download"] = err.Error()
		return fr
	}

	filingDir := filepath.Join(outputDir, filing.AccessionNumber)
	docPath, ok := download.PreferredViewFile(filingDir, filing)
	if !ok {
		fr.Errors["download"] = "no viewable document in package"
		return fr
	}
	fr.Document = docPath

	document, err := os.ReadFile(docPath)
	if err != nil {
		fr.Errors["download"] = err.Error()
		return fr
	}

	tables, err := o.tables.Extract(document, extract.TableOptions{})
	if err != nil {
		fr.Errors["tables"] = err.Error()
		log.Printf("[Pipeline] %s: table extraction failed: %v", filing.AccessionNumber, err)
	} else {
		fr.Tables = tables
	}

	sections, err := o.sections.Extract(document)
	if err != nil {
		fr.Errors["sections"] = err.Error()
		log.Printf("[Pipeline] %s: section extraction failed: %v", filing.AccessionNumber, err)
	} else {
		fr.Sections = sections
	}

	if len(fr.Errors) == 0 {
		fr.Errors = nil
		if o.cache != nil {
			if err := o.cache.Save(ctx, &fr); err != nil {
				log.Printf("[Pipeline] %s: cache write failed: %v", filing.AccessionNumber, err)
			}
		}
	}
	return fr
}

// mapFacts fetches the company's XBRL facts and pivots them into the three
// canonical statements. Failures are recorded, not raised.
func (o *Orchestrator) mapFacts(ctx context.Context, comp company.Company, result *Result) {
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", o.cfg.APIBase, comp.CIK)
	raw, err := o.client.Get(ctx, url)
	if err != nil {
		result.Errors["facts"] = err.Error()
		log.Printf("[Pipeline] facts fetch failed: %v", err)
		return
	}

	set, err := facts.ParseCompanyFacts(raw)
	if err != nil {
		result.Errors["facts"] = err.Error()
		log.Printf("[Pipeline] facts parse failed: %v", err)
		return
	}
	result.RawFacts = set

	mapper := facts.NewMapper(o.cfg, o.taxonomy, facts.WithFiscalYearEnd(comp.FiscalYearEnd))
	statements, err := mapper.Extract(set)
	if err != nil {
		result.Errors["facts"] = err.Error()
		log.Printf("[Pipeline] fact mapping failed: %v", err)
		return
	}
	result.Statements = statements

	result.Warnings = statements.Validate()
	for _, warning := range result.Warnings {
		log.Printf("[Pipeline] validation: %s", warning)
	}
}
