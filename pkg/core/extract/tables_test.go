package extract

import (
	"fmt"
	"reflect"
	"testing"

	"secfilings/pkg/core/config"
)

func newTableExtractor() *TableExtractor {
	return NewTableExtractor(config.Default())
}

func TestExtract_FiltersNarrowTables(t *testing.T) {
	doc := []byte(`<html><body>
		<table>
			<tr><td>a1</td><td>b1</td><td>c1</td><td>d1</td></tr>
			<tr><td>a2</td><td>b2</td><td>c2</td><td>d2</td></tr>
			<tr><td>a3</td><td>b3</td><td>c3</td><td>d3</td></tr>
		</table>
		<table>
			<tr><td>only</td></tr>
			<tr><td>one column</td></tr>
		</table>
	</body></html>`)

	tables, err := newTableExtractor().Extract(doc, TableOptions{MinColumns: 2})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}
	got := tables[0]
	if got.Index != 1 {
		t.Errorf("Index = %d, want 1", got.Index)
	}
	if len(got.Rows) != 3 || got.Columns != 4 {
		t.Errorf("dimensions = %dx%d, want 3x4", len(got.Rows), got.Columns)
	}
}

func TestExtract_RowspanReplicatesText(t *testing.T) {
	doc := []byte(`<table>
		<tr><td rowspan="2">merged</td><td>r1c2</td></tr>
		<tr><td>r2c2</td></tr>
	</table>`)

	tables, err := newTableExtractor().Extract(doc, TableOptions{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}
	rows := tables[0].Rows
	// Span expansion keeps the logical row count and copies the text into
	// both covered positions.
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != "merged" || rows[1][0] != "merged" {
		t.Errorf("rowspan text not replicated: %q / %q", rows[0][0], rows[1][0])
	}
	if rows[0][1] != "r1c2" || rows[1][1] != "r2c2" {
		t.Errorf("neighbor cells displaced: %v", rows)
	}
}

func TestExtract_ColspanReplicatesText(t *testing.T) {
	doc := []byte(`<table>
		<tr><td colspan="3">wide</td><td>end</td></tr>
		<tr><td>a</td><td>b</td><td>c</td><td>d</td></tr>
	</table>`)

	tables, err := newTableExtractor().Extract(doc, TableOptions{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	rows := tables[0].Rows
	want := []string{"wide", "wide", "wide", "end"}
	if !reflect.DeepEqual(rows[0], want) {
		t.Errorf("rows[0] = %v, want %v", rows[0], want)
	}
}

func TestExtract_ShortRowsPaddedNotTruncated(t *testing.T) {
	doc := []byte(`<table>
		<tr><td>a</td><td>b</td><td>c</td></tr>
		<tr><td>only</td></tr>
	</table>`)

	tables, err := newTableExtractor().Extract(doc, TableOptions{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	rows := tables[0].Rows
	if len(rows[1]) != 3 {
		t.Fatalf("short row has %d cells, want 3", len(rows[1]))
	}
	if rows[1][0] != "only" || rows[1][1] != "" || rows[1][2] != "" {
		t.Errorf("padding wrong: %v", rows[1])
	}
}

func TestExtract_WhitespaceCollapsedInsideCells(t *testing.T) {
	doc := []byte("<table><tr><td>  Total \n\t revenues  </td><td>1</td></tr></table>")

	tables, err := newTableExtractor().Extract(doc, TableOptions{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got := tables[0].Rows[0][0]; got != "Total revenues" {
		t.Errorf("cell = %q, want %q", got, "Total revenues")
	}
}

func TestExtract_MaxTablesIsHardCap(t *testing.T) {
	var doc []byte
	for i := 0; i < 10; i++ {
		doc = append(doc, []byte(fmt.Sprintf(
			"<table><tr><td>t%d</td><td>x</td></tr></table>", i))...)
	}

	tables, err := newTableExtractor().Extract(doc, TableOptions{MaxTables: 4})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tables) != 4 {
		t.Errorf("got %d tables, want 4", len(tables))
	}
}

func TestExtract_ReindexesContiguously(t *testing.T) {
	// A narrow table between two wide ones must not leave an index gap.
	doc := []byte(`
		<table><tr><td>a</td><td>b</td></tr></table>
		<table><tr><td>narrow</td></tr></table>
		<table><tr><td>c</td><td>d</td></tr></table>`)

	tables, err := newTableExtractor().Extract(doc, TableOptions{MinColumns: 2})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(tables))
	}
	if tables[0].Index != 1 || tables[1].Index != 2 {
		t.Errorf("indices = %d,%d, want 1,2", tables[0].Index, tables[1].Index)
	}
}

func TestExtract_NestedTablesNotDoubleCounted(t *testing.T) {
	doc := []byte(`<table>
		<tr><td>outer</td><td><table><tr><td>in1</td><td>in2</td></tr></table></td></tr>
	</table>`)

	tables, err := newTableExtractor().Extract(doc, TableOptions{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tables) != 1 {
		t.Errorf("got %d tables, want 1 (nested table is cell content)", len(tables))
	}
}

func TestExtract_Deterministic(t *testing.T) {
	doc := []byte(`<table>
		<tr><td rowspan="2">a</td><td>b</td><td>c</td></tr>
		<tr><td>d</td><td>e</td></tr>
	</table>`)

	first, err := newTableExtractor().Extract(doc, TableOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := newTableExtractor().Extract(doc, TableOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("re-running extraction on identical bytes produced different output")
	}
}
