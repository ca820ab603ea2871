// Package export writes extraction output to disk: per-table CSV files
// with a combined JSON, per-item Markdown sections with an index (plus an
// HTML rendering of the index), and the three statement CSVs alongside the
// raw fact set for auditability.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yuin/goldmark"

	"secfilings/pkg/core/extract"
	"secfilings/pkg/core/facts"
)

// TableArtifacts lists the files one table export produced.
type TableArtifacts struct {
	CSVFiles []string `json:"csv_files"`
	JSONFile string   `json:"json_file"`
}

// WriteTables writes each table to {stem}_table_{index}.csv and all tables
// plus metadata to {stem}_tables.json.
func WriteTables(outputDir, stem, source string, tables []extract.ExtractedTable) (TableArtifacts, error) {
	var artifacts TableArtifacts
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return artifacts, fmt.Errorf("creating output directory: %w", err)
	}

	for _, table := range tables {
		path := filepath.Join(outputDir, fmt.Sprintf("%s_table_%d.csv", stem, table.Index))
		if err := writeCSV(path, nil, table.Rows); err != nil {
			return artifacts, err
		}
		artifacts.CSVFiles = append(artifacts.CSVFiles, path)
	}

	combined := struct {
		Source     string                   `json:"source"`
		TableCount int                      `json:"table_count"`
		Tables     []extract.ExtractedTable `json:"tables"`
	}{Source: source, TableCount: len(tables), Tables: tables}

	jsonPath := filepath.Join(outputDir, stem+"_tables.json")
	if err := writeJSON(jsonPath, combined); err != nil {
		return artifacts, err
	}
	artifacts.JSONFile = jsonPath

	log.Printf("[Export] wrote %d table CSVs and %s", len(artifacts.CSVFiles), jsonPath)
	return artifacts, nil
}

// SectionArtifacts lists the files one section export produced.
type SectionArtifacts struct {
	Files     []string `json:"files"`
	IndexFile string   `json:"index_file"`
	HTMLIndex string   `json:"html_index"`
}

// WriteSections writes each section to Item_{id}.md, an index listing all
// items to sections_index.md, and an HTML rendering of the index to
// sections_index.html.
func WriteSections(outputDir string, sections map[string]extract.Section) (SectionArtifacts, error) {
	var artifacts SectionArtifacts
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return artifacts, fmt.Errorf("creating output directory: %w", err)
	}

	ids := make([]string, 0, len(sections))
	for id := range sections {
		ids = append(ids, id)
	}
	ids = extract.SortItemIDs(ids)

	for _, id := range ids {
		section := sections[id]
		path := filepath.Join(outputDir, "Item_"+id+".md")

		var body bytes.Buffer
		fmt.Fprintf(&body, "## Item %s", id)
		if section.Title != "" {
			fmt.Fprintf(&body, " %s", section.Title)
		}
		body.WriteString("\n\n")
		body.WriteString(section.Body)
		body.WriteString("\n")

		if err := os.WriteFile(path, body.Bytes(), 0o644); err != nil {
			return artifacts, fmt.Errorf("writing section %s: %w", id, err)
		}
		artifacts.Files = append(artifacts.Files, path)
	}

	index := buildSectionIndex(ids, sections)
	indexPath := filepath.Join(outputDir, "sections_index.md")
	if err := os.WriteFile(indexPath, index, 0o644); err != nil {
		return artifacts, fmt.Errorf("writing section index: %w", err)
	}
	artifacts.IndexFile = indexPath

	var rendered bytes.Buffer
	if err := goldmark.Convert(index, &rendered); err != nil {
		return artifacts, fmt.Errorf("rendering section index: %w", err)
	}
	htmlPath := filepath.Join(outputDir, "sections_index.html")
	if err := os.WriteFile(htmlPath, rendered.Bytes(), 0o644); err != nil {
		return artifacts, fmt.Errorf("writing html index: %w", err)
	}
	artifacts.HTMLIndex = htmlPath

	log.Printf("[Export] wrote %d sections and index to %s", len(artifacts.Files), outputDir)
	return artifacts, nil
}

func buildSectionIndex(ids []string, sections map[string]extract.Section) []byte {
	var b bytes.Buffer
	b.WriteString("## Extracted Items\n\n")
	for _, id := range ids {
		section := sections[id]
		fmt.Fprintf(&b, "- Item %s", id)
		if section.Title != "" {
			fmt.Fprintf(&b, ": %s", section.Title)
		}
		fmt.Fprintf(&b, " → `Item_%s.md`", id)
		if section.Ambiguous {
			b.WriteString(" (ambiguous boundary, review)")
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

// StatementArtifacts lists the files one statement export produced.
type StatementArtifacts struct {
	Statements map[string]string `json:"statements"` // code -> csv path
	RawFacts   string            `json:"raw_facts,omitempty"`
}

// WriteStatements writes one CSV per canonical statement ({code}.csv, a
// Date column then one column per concept, rows ascending by period end)
// and, when a fact set is supplied, the raw facts as company_facts.json.
// Unreported values stay empty cells; zero is written only when reported.
func WriteStatements(outputDir string, statements facts.Statements, raw *facts.FactSet) (StatementArtifacts, error) {
	artifacts := StatementArtifacts{Statements: make(map[string]string)}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return artifacts, fmt.Errorf("creating output directory: %w", err)
	}

	for code, statement := range map[string]*facts.Statement{
		"IS": statements.IncomeStatement,
		"BS": statements.BalanceSheet,
		"CF": statements.CashFlow,
	} {
		if statement == nil {
			continue
		}
		path := filepath.Join(outputDir, code+".csv")
		if err := writeStatementCSV(path, statement); err != nil {
			return artifacts, err
		}
		artifacts.Statements[code] = path
	}

	if raw != nil {
		rawPath := filepath.Join(outputDir, "company_facts.json")
		if err := writeJSON(rawPath, raw); err != nil {
			return artifacts, err
		}
		artifacts.RawFacts = rawPath
	}

	log.Printf("[Export] wrote %d statement CSVs to %s", len(artifacts.Statements), outputDir)
	return artifacts, nil
}

func writeStatementCSV(path string, statement *facts.Statement) error {
	header := append([]string{"Date"}, statement.Concepts...)
	rows := make([][]string, 0, len(statement.Rows))
	for _, row := range statement.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.PeriodEnd)
		for _, concept := range statement.Concepts {
			if value, reported := row.Values[concept]; reported {
				record = append(record, strconv.FormatFloat(value, 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		rows = append(rows, record)
	}
	return writeCSV(path, header, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if header != nil {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, raw, 0o644)
}
