// Package client provides rate-limited, retrying HTTP access to SEC EDGAR.
//
// SEC fair-access guidelines require an identifying User-Agent and no more
// than a handful of requests per second. The client enforces a minimum
// interval between consecutive requests and retries transient failures with
// exponential backoff.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"secfilings/pkg/core/config"
)

// Client is the single point of network access for the pipeline. All calls
// through one instance observe strictly sequential request timing: the
// pacing mutex covers the read-last-time / sleep / record sequence, so two
// goroutines sharing a client can never burst.
type Client struct {
	httpClient *http.Client
	userAgent  string

	interval   time.Duration
	maxRetries int
	baseDelay  time.Duration

	mu       sync.Mutex
	lastDone time.Time
}

// New creates a client. An empty identification string is a configuration
// error and is rejected here rather than surfacing on the first request.
func New(cfg config.Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("client: identification User-Agent must not be empty")
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  cfg.UserAgent,
		interval:   cfg.RequestInterval,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
	}, nil
}

// Get fetches a URL and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.withRetry(ctx, url, func() error {
		b, _, err := c.doOnce(ctx, url, nil)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	return body, err
}

// GetJSON fetches a URL and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v interface{}) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON response from %s: %w", url, err)
	}
	return nil
}

// StreamTo fetches a URL and copies the body into sink, returning the number
// of bytes written. Used for filing downloads so large documents never sit
// fully in memory.
func (c *Client) StreamTo(ctx context.Context, url string, sink io.Writer) (int64, error) {
	var written int64
	err := c.withRetry(ctx, url, func() error {
		// Rewind file-backed sinks so a retried attempt does not append
		// to a partial body.
		if ws, ok := sink.(io.WriteSeeker); ok {
			if _, err := ws.Seek(0, io.SeekStart); err != nil {
				return err
			}
			if tr, ok := sink.(interface{ Truncate(int64) error }); ok {
				if err := tr.Truncate(0); err != nil {
					return err
				}
			}
		}
		_, n, err := c.doOnce(ctx, url, sink)
		if err != nil {
			return err
		}
		written = n
		return nil
	})
	return written, err
}

// withRetry runs attempt until it succeeds or retries are exhausted.
// Transient failures are connection errors, timeouts, HTTP 5xx and 429.
// Two consecutive 429s fail fast with RateLimitError.
func (c *Client) withRetry(ctx context.Context, url string, attempt func() error) error {
	var lastErr error
	consecutive429 := 0
	made := 0

	attempts := c.maxRetries + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			// Exponential backoff with jitter so a fleet of clients does
			// not resynchronize against the same endpoint.
			delay := c.baseDelay << (i - 1)
			jitterMax := int64(c.baseDelay) / 4
			if jitterMax <= 0 {
				jitterMax = 1
			}
			jitter := time.Duration(rand.Int63n(jitterMax))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return &DownloadError{URL: url, Attempts: i, Cause: ctx.Err()}
			}
		}

		made = i + 1
		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err

		if se, ok := err.(*statusError); ok && se.code == http.StatusTooManyRequests {
			consecutive429++
			if consecutive429 >= 2 {
				log.Printf("[Client] sustained 429 from %s, failing fast", url)
				return &RateLimitError{URL: url}
			}
		} else {
			consecutive429 = 0
		}

		if !isTransient(err) {
			break
		}
		log.Printf("[Client] transient failure (attempt %d/%d) for %s: %v", i+1, attempts, url, err)
	}

	return &DownloadError{URL: url, Attempts: made, Cause: lastErr}
}

// doOnce performs a single paced request. If sink is nil the body is
// returned; otherwise it is streamed into sink and the byte count returned.
// The count comes back by value so concurrent callers sharing one client
// never see each other's totals.
func (c *Client) doOnce(ctx context.Context, url string, sink io.Writer) ([]byte, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Fair-access gate: measured from the end of the previous request to
	// the start of this one. Not skippable.
	if elapsed := time.Since(c.lastDone); elapsed < c.interval && !c.lastDone.IsZero() {
		time.Sleep(c.interval - elapsed)
	}
	defer func() { c.lastDone = time.Now() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, &statusError{code: resp.StatusCode}
	}

	if sink != nil {
		n, err := io.Copy(sink, resp.Body)
		if err != nil {
			return nil, n, err
		}
		return nil, n, nil
	}
	body, err := io.ReadAll(resp.Body)
	return body, 0, err
}

// isTransient reports whether an error is worth retrying.
func isTransient(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	// Connection errors and timeouts from the transport are transient;
	// request construction errors are not, but those never reach here in
	// practice since URLs are built internally.
	return true
}
