package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"secfilings/pkg/core/config"
	"secfilings/pkg/core/export"
	"secfilings/pkg/core/pipeline"
	"secfilings/pkg/core/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	var (
		ticker       = flag.String("ticker", "", "stock ticker to process (required)")
		forms        = flag.String("forms", "10-K", "comma-separated form types, empty for all supported")
		limit        = flag.Int("limit", 1, "maximum filings to process")
		output       = flag.String("output", "", "output directory (default from SEC_OUTPUT_DIR or ./sec_filings)")
		taxonomyPath = flag.String("taxonomy", "", "optional taxonomy override file (.yaml or .hjson)")
		exhibits     = flag.Bool("exhibits", false, "download exhibit files too")
		skipFacts    = flag.Bool("skip-facts", false, "skip XBRL fact mapping")
		skipDocs     = flag.Bool("skip-documents", false, "skip document download and extraction")
		persist      = flag.Bool("persist", false, "save the run to the database (needs DATABASE_URL)")
		useCache     = flag.Bool("cache", false, "reuse extraction results for filings already processed")
	)
	flag.Parse()

	if *ticker == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	if *output != "" {
		cfg.OutputDir = *output
	}

	taxonomy := config.DefaultTaxonomy()
	if *taxonomyPath != "" {
		loaded, err := config.LoadTaxonomy(*taxonomyPath)
		if err != nil {
			log.Fatalf("Failed to load taxonomy: %v", err)
		}
		taxonomy = loaded
	}

	ctx := context.Background()

	if *persist {
		if err := store.InitDB(ctx); err != nil {
			log.Fatalf("Database unavailable: %v", err)
		}
		defer store.Close()
	}

	orchestrator, err := pipeline.New(cfg, taxonomy)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	if *useCache {
		// Shares the pool when -persist opened one, file-backed otherwise.
		orchestrator.UseCache(store.NewResultCache(store.GetPool(), ""))
	}

	var formList []string
	if *forms != "" {
		for _, f := range strings.Split(*forms, ",") {
			if f = strings.TrimSpace(f); f != "" {
				formList = append(formList, f)
			}
		}
	}

	result, err := orchestrator.Run(ctx, *ticker, pipeline.RunOptions{
		Forms:           formList,
		Limit:           *limit,
		OutputDir:       cfg.OutputDir,
		IncludeExhibits: *exhibits,
		SkipFacts:       *skipFacts,
		SkipDocuments:   *skipDocs,
	})
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	if err := writeArtifacts(cfg.OutputDir, result); err != nil {
		log.Fatalf("Failed to write artifacts: %v", err)
	}

	if *persist {
		if err := store.NewRunRepo(store.GetPool()).SaveRun(ctx, result); err != nil {
			log.Fatalf("Failed to save run: %v", err)
		}
	}

	printSummary(result)
}

// writeArtifacts exports each filing's tables and sections next to its
// downloaded package, and the statements at the company level.
func writeArtifacts(outputDir string, result *pipeline.Result) error {
	for _, fr := range result.Filings {
		filingDir := filepath.Join(outputDir, fr.Filing.AccessionNumber)
		stem := strings.TrimSuffix(fr.Filing.PrimaryDocument, filepath.Ext(fr.Filing.PrimaryDocument))

		if len(fr.Tables) > 0 {
			if _, err := export.WriteTables(filepath.Join(filingDir, "tables"), stem, fr.Document, fr.Tables); err != nil {
				return err
			}
		}
		if len(fr.Sections) > 0 {
			if _, err := export.WriteSections(filepath.Join(filingDir, "sections"), fr.Sections); err != nil {
				return err
			}
		}
	}

	if result.Statements.IncomeStatement != nil || result.Statements.BalanceSheet != nil ||
		result.Statements.CashFlow != nil {
		companyDir := filepath.Join(outputDir, "CIK"+result.Company.CIK)
		if _, err := export.WriteStatements(companyDir, result.Statements, result.RawFacts); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(result *pipeline.Result) {
	fmt.Printf("\nRun %s: %s (%s, CIK %s)\n",
		result.RunID, result.Company.Name, result.Company.Ticker, result.Company.CIK)
	for _, fr := range result.Filings {
		fmt.Printf("  %s: %d tables, %d sections", fr.Filing, len(fr.Tables), len(fr.Sections))
		if len(fr.Errors) > 0 {
			fmt.Printf(" (errors: %v)", fr.Errors)
		}
		fmt.Println()
	}
	statements := 0
	for _, s := range []bool{
		result.Statements.IncomeStatement != nil,
		result.Statements.BalanceSheet != nil,
		result.Statements.CashFlow != nil,
	} {
		if s {
			statements++
		}
	}
	fmt.Printf("  %d financial statements\n", statements)
	for extractor, msg := range result.Errors {
		fmt.Printf("  warning: %s failed: %s\n", extractor, msg)
	}
}
