package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"secfilings/pkg/core/catalog"
	"secfilings/pkg/core/config"
)

type fakeFetcher struct {
	index string
	files map[string]string // filename -> body
}

func (f *fakeFetcher) GetJSON(ctx context.Context, url string, v interface{}) error {
	if !strings.HasSuffix(url, "/index.json") {
		return fmt.Errorf("unexpected JSON url %s", url)
	}
	return json.Unmarshal([]byte(f.index), v)
}

func (f *fakeFetcher) StreamTo(ctx context.Context, url string, sink io.Writer) (int64, error) {
	name := url[strings.LastIndex(url, "/")+1:]
	body, ok := f.files[name]
	if !ok {
		return 0, fmt.Errorf("not found: %s", url)
	}
	n, err := sink.Write([]byte(body))
	return int64(n), err
}

func testFiling() catalog.Filing {
	return catalog.Filing{
		AccessionNumber: "0000320193-23-000106",
		Form:            "10-K",
		FilingDate:      "2023-11-03",
		PrimaryDocument: "aapl-20230930.htm",
		CIK:             "0000320193",
	}
}

func indexFixture(names ...string) string {
	items := make([]map[string]string, 0, len(names))
	for _, n := range names {
		items = append(items, map[string]string{"name": n, "size": "1000"})
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"directory": map[string]interface{}{"item": items},
	})
	return string(raw)
}

func TestURLs_StripsLeadingCIKZeros(t *testing.T) {
	d := New(&fakeFetcher{}, config.Default())
	urls := d.URLs(testFiling())

	want := "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106"
	if urls.Folder != want {
		t.Errorf("Folder = %s, want %s", urls.Folder, want)
	}
	if urls.IndexJSON != want+"/index.json" {
		t.Errorf("IndexJSON = %s", urls.IndexJSON)
	}
	if urls.PrimaryDoc != want+"/aapl-20230930.htm" {
		t.Errorf("PrimaryDoc = %s", urls.PrimaryDoc)
	}
}

func TestDownload_FiltersExhibitsByExtension(t *testing.T) {
	fetcher := &fakeFetcher{
		index: indexFixture("aapl-20230930.htm", "financials.xml", "chart.jpg", "notes.txt"),
		files: map[string]string{
			"aapl-20230930.htm": "<html>filing</html>",
			"financials.xml":    "<xbrl/>",
			"notes.txt":         "notes",
			"chart.jpg":         "binary",
		},
	}
	d := New(fetcher, config.Default())
	dir := t.TempDir()

	written, err := d.Download(context.Background(), testFiling(), dir, false)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("wrote %d files, want 3 (jpg excluded): %v", len(written), written)
	}
	for _, path := range written {
		if strings.HasSuffix(path, ".jpg") {
			t.Errorf("non-document file downloaded: %s", path)
		}
	}
}

func TestDownload_IncludeExhibitsKeepsEverything(t *testing.T) {
	fetcher := &fakeFetcher{
		index: indexFixture("aapl-20230930.htm", "chart.jpg"),
		files: map[string]string{
			"aapl-20230930.htm": "<html>filing</html>",
			"chart.jpg":         "binary",
		},
	}
	d := New(fetcher, config.Default())

	written, err := d.Download(context.Background(), testFiling(), t.TempDir(), true)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(written) != 2 {
		t.Errorf("wrote %d files, want 2", len(written))
	}
}

func TestDownload_SkipsFailedFilesButSucceeds(t *testing.T) {
	fetcher := &fakeFetcher{
		index: indexFixture("aapl-20230930.htm", "missing.htm"),
		files: map[string]string{
			"aapl-20230930.htm": "<html>filing</html>",
		},
	}
	d := New(fetcher, config.Default())
	dir := t.TempDir()

	written, err := d.Download(context.Background(), testFiling(), dir, false)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("wrote %d files, want 1", len(written))
	}
	if _, err := os.Stat(filepath.Join(dir, "0000320193-23-000106", "missing.htm")); !os.IsNotExist(err) {
		t.Error("failed download left a partial file behind")
	}
}

func TestDownload_AllFilesFailingIsError(t *testing.T) {
	fetcher := &fakeFetcher{
		index: indexFixture("a.htm", "b.htm"),
		files: map[string]string{},
	}
	d := New(fetcher, config.Default())

	if _, err := d.Download(context.Background(), testFiling(), t.TempDir(), false); err == nil {
		t.Error("expected error when no file could be downloaded")
	}
}

func TestDownloadPrimary(t *testing.T) {
	fetcher := &fakeFetcher{
		files: map[string]string{"aapl-20230930.htm": "<html>primary</html>"},
	}
	d := New(fetcher, config.Default())
	dir := t.TempDir()

	path, err := d.DownloadPrimary(context.Background(), testFiling(), dir)
	if err != nil {
		t.Fatalf("DownloadPrimary failed: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading primary: %v", err)
	}
	if string(body) != "<html>primary</html>" {
		t.Errorf("body = %q", body)
	}
}

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPreferredViewFile_SubstantialPrimaryWins(t *testing.T) {
	f := testFiling()
	dir := t.TempDir()
	writeFile(t, dir, f.PrimaryDocument, 4096)
	writeFile(t, dir, "R1.htm", 100)

	got, ok := PreferredViewFile(dir, f)
	if !ok || filepath.Base(got) != f.PrimaryDocument {
		t.Errorf("got %q, want primary document", got)
	}
}

func TestPreferredViewFile_SmallPrimaryFallsThrough(t *testing.T) {
	f := testFiling()
	dir := t.TempDir()
	writeFile(t, dir, f.PrimaryDocument, 100) // stub that just links onward
	writeFile(t, dir, "R1.htm", 500)

	got, ok := PreferredViewFile(dir, f)
	if !ok || filepath.Base(got) != "R1.htm" {
		t.Errorf("got %q, want R1.htm", got)
	}
}

func TestPreferredViewFile_LargestRenderedFile(t *testing.T) {
	f := testFiling()
	dir := t.TempDir()
	writeFile(t, dir, "R2.htm", 300)
	writeFile(t, dir, "R7.htm", 900)
	writeFile(t, dir, "ex99-1.htm", 5000)

	got, ok := PreferredViewFile(dir, f)
	if !ok || filepath.Base(got) != "R7.htm" {
		t.Errorf("got %q, want R7.htm", got)
	}
}

func TestPreferredViewFile_ExhibitsExcludedFromHTMLFallback(t *testing.T) {
	f := testFiling()
	dir := t.TempDir()
	writeFile(t, dir, "ex99-1.htm", 5000)
	writeFile(t, dir, "body.htm", 300)

	got, ok := PreferredViewFile(dir, f)
	if !ok || filepath.Base(got) != "body.htm" {
		t.Errorf("got %q, want body.htm over the larger exhibit", got)
	}
}

func TestPreferredViewFile_TinyPrimaryIsLastResort(t *testing.T) {
	f := testFiling()
	dir := t.TempDir()
	writeFile(t, dir, f.PrimaryDocument, 10)

	got, ok := PreferredViewFile(dir, f)
	if !ok || filepath.Base(got) != f.PrimaryDocument {
		t.Errorf("got %q, want primary as last resort", got)
	}
}

func TestPreferredViewFile_EmptyDir(t *testing.T) {
	if _, ok := PreferredViewFile(t.TempDir(), testFiling()); ok {
		t.Error("empty directory should yield no view file")
	}
}
