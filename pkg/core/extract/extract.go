// Package extract provides the HTML content extractors: structural tables
// and narrative item sections. Extractors are pure: they consume document
// bytes and return new value objects, so concurrent invocation on the same
// document is safe.
package extract

import "fmt"

// ExtractionError reports that one extractor could not process its input.
// The orchestrator records these per extractor instead of aborting siblings.
type ExtractionError struct {
	Extractor string
	Cause     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Extractor, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }
