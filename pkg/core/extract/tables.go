package extract

import (
	"bytes"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"secfilings/pkg/core/config"
)

// ExtractedTable is one normalized table from a filing document. After
// normalization every row has exactly Columns cells: merged cells are
// expanded into each grid position they cover and short rows are padded
// with empty cells, never truncated.
type ExtractedTable struct {
	Index   int        `json:"index"` // 1-based, contiguous across surviving tables
	Caption string     `json:"caption,omitempty"`
	Columns int        `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// TableOptions tunes a single extraction run. Zero values fall back to the
// extractor's configured defaults.
type TableOptions struct {
	MinColumns int // tables narrower than this are layout artifacts, discarded
	MaxTables  int // hard cap on qualifying tables per document
}

// TableExtractor parses structural tables from filing HTML.
type TableExtractor struct {
	minColumns int
	maxTables  int
}

// NewTableExtractor creates an extractor with defaults from cfg.
func NewTableExtractor(cfg config.Config) *TableExtractor {
	return &TableExtractor{
		minColumns: cfg.MinTableColumns,
		maxTables:  cfg.MaxTablesPerFile,
	}
}

var wsCollapse = regexp.MustCompile(`\s+`)

// cleanCell collapses internal whitespace to single spaces. Cell text is
// not otherwise reformatted.
func cleanCell(s string) string {
	return strings.TrimSpace(wsCollapse.ReplaceAllString(s, " "))
}

// Extract parses every top-level table node in document order, expands
// spans, pads rows, drops tables below the column threshold and stops after
// the table cap. Surviving tables are re-indexed 1..K.
func (e *TableExtractor) Extract(document []byte, opts TableOptions) ([]ExtractedTable, error) {
	minColumns := opts.MinColumns
	if minColumns <= 0 {
		minColumns = e.minColumns
	}
	maxTables := opts.MaxTables
	if maxTables <= 0 {
		maxTables = e.maxTables
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return nil, &ExtractionError{Extractor: "tables", Cause: err}
	}

	var tables []ExtractedTable
	scanned := 0

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		// Nested tables are counted as content of their outer cell, not
		// extracted separately.
		if table.ParentsFiltered("table").Length() > 0 {
			return true
		}
		scanned++

		rows := expandGrid(table)
		if len(rows) == 0 {
			return true
		}

		width := 0
		for _, row := range rows {
			if len(row) > width {
				width = len(row)
			}
		}
		if width < minColumns {
			return true
		}

		// Pad short rows to the table's full width.
		for i, row := range rows {
			for len(row) < width {
				row = append(row, "")
			}
			rows[i] = row
		}

		tables = append(tables, ExtractedTable{
			Index:   len(tables) + 1,
			Caption: cleanCell(table.ChildrenFiltered("caption").First().Text()),
			Columns: width,
			Rows:    rows,
		})
		return len(tables) < maxTables
	})

	log.Printf("[Tables] scanned=%d kept=%d (min_columns=%d, max_tables=%d)",
		scanned, len(tables), minColumns, maxTables)
	return tables, nil
}

// expandGrid converts a table selection into a rectangular grid, replicating
// cells with rowspan/colspan into every logical position they cover.
func expandGrid(table *goquery.Selection) [][]string {
	// pending[row][col] holds text carried down by rowspans.
	pending := make(map[int]map[int]string)

	var grid [][]string
	rowIdx := 0

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Rows belonging to nested tables are handled by their cell text.
		if tr.ParentsFiltered("table").First().Length() > 0 &&
			!tr.ParentsFiltered("table").First().IsSelection(table) {
			return
		}

		row := make(map[int]string)
		for col, text := range pending[rowIdx] {
			row[col] = text
		}
		delete(pending, rowIdx)

		col := 0
		tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			// Advance past positions already occupied by carried spans.
			for {
				if _, taken := row[col]; !taken {
					break
				}
				col++
			}

			text := cleanCell(cell.Text())
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")

			for c := 0; c < colspan; c++ {
				row[col+c] = text
				for r := 1; r < rowspan; r++ {
					if pending[rowIdx+r] == nil {
						pending[rowIdx+r] = make(map[int]string)
					}
					pending[rowIdx+r][col+c] = text
				}
			}
			col += colspan
		})

		if len(row) == 0 {
			return
		}

		width := 0
		for c := range row {
			if c+1 > width {
				width = c + 1
			}
		}
		cells := make([]string, width)
		for c, text := range row {
			cells[c] = text
		}
		grid = append(grid, cells)
		rowIdx++
	})

	return grid
}

// spanAttr reads a span attribute, defaulting to 1 for missing or bogus
// values.
func spanAttr(cell *goquery.Selection, name string) int {
	raw, ok := cell.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
