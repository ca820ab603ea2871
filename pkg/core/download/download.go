// Package download materializes filing packages from the document archive
// onto local disk and picks the most useful file to hand to the extractors.
package download

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"secfilings/pkg/core/catalog"
	"secfilings/pkg/core/config"
)

// Fetcher is the archive access surface the downloader needs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, v interface{}) error
	StreamTo(ctx context.Context, url string, sink io.Writer) (int64, error)
}

// Downloader fetches filing packages from the archive.
type Downloader struct {
	fetcher Fetcher
	cfg     config.Config
}

// New creates a downloader on top of the shared access client.
func New(fetcher Fetcher, cfg config.Config) *Downloader {
	return &Downloader{fetcher: fetcher, cfg: cfg}
}

// FilingURLs holds the archive locations for one filing package.
type FilingURLs struct {
	Folder     string
	IndexJSON  string
	PrimaryDoc string
}

// URLs builds the archive locations for a filing. Archive folder paths use
// the CIK without leading zeros.
func (d *Downloader) URLs(f catalog.Filing) FilingURLs {
	cik := strings.TrimLeft(f.CIK, "0")
	if cik == "" {
		cik = "0"
	}
	folder := fmt.Sprintf("%s/Archives/edgar/data/%s/%s",
		d.cfg.FilesBase, cik, f.AccessionNoDashes())
	return FilingURLs{
		Folder:     folder,
		IndexJSON:  folder + "/index.json",
		PrimaryDoc: folder + "/" + f.PrimaryDocument,
	}
}

// indexResponse mirrors the archive's per-filing index.json.
type indexResponse struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
			Size string `json:"size"`
		} `json:"item"`
	} `json:"directory"`
}

var documentFile = regexp.MustCompile(`(?i)\.(htm|html|txt|xml)$`)

// Download fetches a filing's package into outputDir/<accession>/ and
// returns the local paths written. Unless includeExhibits is set, only
// document files (htm/html/txt/xml) are fetched. Individual file failures
// are logged and skipped; the download fails only if nothing could be
// written.
func (d *Downloader) Download(ctx context.Context, f catalog.Filing, outputDir string, includeExhibits bool) ([]string, error) {
	urls := d.URLs(f)

	var index indexResponse
	if err := d.fetcher.GetJSON(ctx, urls.IndexJSON, &index); err != nil {
		return nil, fmt.Errorf("fetching filing index for %s: %w", f.AccessionNumber, err)
	}
	if len(index.Directory.Item) == 0 {
		return nil, fmt.Errorf("filing index for %s lists no files", f.AccessionNumber)
	}

	filingDir := filepath.Join(outputDir, f.AccessionNumber)
	if err := os.MkdirAll(filingDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating filing directory: %w", err)
	}

	var names []string
	for _, item := range index.Directory.Item {
		if !includeExhibits && !documentFile.MatchString(item.Name) {
			continue
		}
		names = append(names, item.Name)
	}
	log.Printf("[Download] %s: fetching %d of %d files", f.AccessionNumber, len(names), len(index.Directory.Item))

	var written []string
	for _, name := range names {
		dest := filepath.Join(filingDir, name)
		if err := d.fetchFile(ctx, urls.Folder+"/"+name, dest); err != nil {
			log.Printf("[Download] skipping %s: %v", name, err)
			continue
		}
		written = append(written, dest)
	}

	if len(written) == 0 {
		return nil, fmt.Errorf("no files downloaded for %s", f.AccessionNumber)
	}
	log.Printf("[Download] %s: wrote %d files to %s", f.AccessionNumber, len(written), filingDir)
	return written, nil
}

// DownloadPrimary fetches only the filing's primary document and returns
// its local path.
func (d *Downloader) DownloadPrimary(ctx context.Context, f catalog.Filing, outputDir string) (string, error) {
	filingDir := filepath.Join(outputDir, f.AccessionNumber)
	if err := os.MkdirAll(filingDir, 0o755); err != nil {
		return "", fmt.Errorf("creating filing directory: %w", err)
	}
	dest := filepath.Join(filingDir, f.PrimaryDocument)
	if err := d.fetchFile(ctx, d.URLs(f).PrimaryDoc, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (d *Downloader) fetchFile(ctx context.Context, url, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	_, err = d.fetcher.StreamTo(ctx, url, out)
	closeErr := out.Close()
	if err != nil {
		os.Remove(dest)
		return err
	}
	return closeErr
}

// minUsefulPrimarySize filters out stub primary documents that only link to
// the real content.
const minUsefulPrimarySize = 2048

// PreferredViewFile picks the best local file to feed the content
// extractors, in priority order: a substantial primary document, the
// index-headers page, the index page, R1.htm, the largest rendered R file,
// the largest non-exhibit HTML file, and finally the primary document even
// if small.
func PreferredViewFile(filingDir string, f catalog.Filing) (string, bool) {
	if info, err := os.Stat(filingDir); err != nil || !info.IsDir() {
		return "", false
	}

	primary := filepath.Join(filingDir, f.PrimaryDocument)
	if fileSize(primary) > minUsefulPrimarySize {
		return primary, true
	}

	for _, name := range []string{
		f.AccessionNumber + "-index-headers.html",
		f.AccessionNumber + "-index.html",
		"R1.htm",
	} {
		candidate := filepath.Join(filingDir, name)
		if fileSize(candidate) > 0 {
			return candidate, true
		}
	}

	if largest := largestMatch(filingDir, isRenderedFile); largest != "" {
		return largest, true
	}
	if largest := largestMatch(filingDir, isNonExhibitHTML); largest != "" {
		return largest, true
	}
	if fileSize(primary) > 0 {
		return primary, true
	}
	return "", false
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

func isRenderedFile(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasPrefix(lower, "r") || !strings.Contains(lower, ".htm") {
		return false
	}
	_, err := strconv.Atoi(strings.SplitN(strings.TrimPrefix(lower, "r"), ".", 2)[0])
	return err == nil
}

func isNonExhibitHTML(name string) bool {
	lower := strings.ToLower(name)
	if !strings.Contains(lower, ".htm") {
		return false
	}
	return !strings.HasPrefix(lower, "ex") &&
		!strings.Contains(lower, "exhibit") &&
		!strings.Contains(lower, "xex")
}

func largestMatch(dir string, match func(string) bool) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	best := ""
	var bestSize int64 = -1
	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		size := fileSize(filepath.Join(dir, entry.Name()))
		if size > bestSize {
			best = filepath.Join(dir, entry.Name())
			bestSize = size
		}
	}
	return best
}
