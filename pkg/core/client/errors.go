package client

import "fmt"

// DownloadError reports a request that failed after exhausting retries.
// The last underlying cause is preserved for errors.Is/As inspection.
type DownloadError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed after %d attempts: %s: %v", e.Attempts, e.URL, e.Cause)
}

func (e *DownloadError) Unwrap() error { return e.Cause }

// RateLimitError reports sustained throttling from SEC. Callers should back
// off or abort the batch rather than retry immediately.
type RateLimitError struct {
	URL string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("SEC rate limit exceeded: %s", e.URL)
}

// statusError is an internal transient-failure marker for HTTP status codes.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }
