package extract

import (
	"bytes"
	"html"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Section is one narrative item extracted from a filing.
type Section struct {
	ItemID string `json:"item_id"` // "1", "1A", "7", ...
	Title  string `json:"title"`
	Body   string `json:"body"`
	// Ambiguous marks sections whose item id appeared more than twice in
	// the document (table of contents plus cross-references), where the
	// last-occurrence heuristic may have picked the wrong boundary. These
	// are flagged for manual review rather than guessed further.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// SectionExtractor locates item sections in filing HTML.
//
// Filings repeat every item header in the table of contents before the real
// section body, so the first match for an item id is almost never the
// section start. The policy is to take the LAST occurrence of each item id
// as its body start: contents pages list items earlier than bodies define
// them. A section ends at the next recognized header of any item id, or at
// end of document.
type SectionExtractor struct{}

// NewSectionExtractor creates a section extractor.
func NewSectionExtractor() *SectionExtractor {
	return &SectionExtractor{}
}

// itemHeader matches "ITEM 1", "Item 1A.", "item 7A —  Quantitative..." at
// line starts in linearized text.
var itemHeader = regexp.MustCompile(`(?im)^[ \t]*item[ \t]+(\d{1,2}[a-z]?)\b\.?[ \t]*[-–—:]?[ \t]*(.*)$`)

// Extract returns the document's sections keyed by item id. Item ids are
// unique in the result by construction.
func (e *SectionExtractor) Extract(document []byte) (map[string]Section, error) {
	text, err := linearize(document)
	if err != nil {
		return nil, &ExtractionError{Extractor: "sections", Cause: err}
	}

	matches := itemHeader.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		log.Printf("[Sections] no item headers found")
		return map[string]Section{}, nil
	}

	// Collect every candidate match index per item id, in document order.
	byItem := make(map[string][]int)
	order := make([]string, 0)
	for i, m := range matches {
		id := strings.ToUpper(text[m[2]:m[3]])
		if _, seen := byItem[id]; !seen {
			order = append(order, id)
		}
		byItem[id] = append(byItem[id], i)
	}

	sections := make(map[string]Section, len(byItem))
	for _, id := range order {
		candidates := byItem[id]
		chosen := candidates[len(candidates)-1]
		m := matches[chosen]

		title := strings.TrimSpace(text[m[4]:m[5]])

		// Body runs from the end of the header line to the start of the
		// next recognized header, or end of document.
		bodyStart := m[1]
		bodyEnd := len(text)
		if chosen+1 < len(matches) {
			bodyEnd = matches[chosen+1][0]
		}

		body := strings.TrimSpace(text[bodyStart:bodyEnd])
		body = regexp.MustCompile(`\n{3,}`).ReplaceAllString(body, "\n\n")

		sections[id] = Section{
			ItemID:    id,
			Title:     title,
			Body:      body,
			Ambiguous: len(candidates) > 2,
		}
	}

	log.Printf("[Sections] extracted %d sections (%d headers scanned)", len(sections), len(matches))
	return sections, nil
}

// SortItemIDs orders item ids by their canonical numbering: numeric part
// first, then letter suffix ("1" < "1A" < "2" < "10").
func SortItemIDs(ids []string) []string {
	sorted := append([]string(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool {
		ni, si := splitItemID(sorted[i])
		nj, sj := splitItemID(sorted[j])
		if ni != nj {
			return ni < nj
		}
		return si < sj
	})
	return sorted
}

var itemIDParts = regexp.MustCompile(`^(\d+)([A-Z]?)$`)

func splitItemID(id string) (int, string) {
	m := itemIDParts.FindStringSubmatch(id)
	if m == nil {
		return 0, id
	}
	n := 0
	for _, ch := range m[1] {
		n = n*10 + int(ch-'0')
	}
	return n, m[2]
}

// linearize converts filing HTML to plain text: script/style and hidden
// content stripped, block-level tags mapped to line breaks, entities
// unescaped, whitespace normalized.
func linearize(document []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, [style*='display:none'], [style*='display: none']").Remove()

	rendered, err := doc.Html()
	if err != nil {
		return "", err
	}

	text := rendered
	// Preserve structure from block-level elements before stripping tags.
	text = regexp.MustCompile(`(?i)<(br|/p|/div|/tr|/li|/h\d|/table)[^>]*>`).ReplaceAllString(text, "\n")
	text = regexp.MustCompile(`(?i)</(td|th)>`).ReplaceAllString(text, " ")
	text = regexp.MustCompile(`<[^>]+>`).ReplaceAllString(text, " ")
	text = html.UnescapeString(text)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = regexp.MustCompile(`[\t ]+`).ReplaceAllString(text, " ")
	text = regexp.MustCompile(`(?m)^ +| +$`).ReplaceAllString(text, "")
	text = regexp.MustCompile(`\n{3,}`).ReplaceAllString(text, "\n\n")

	return text, nil
}
