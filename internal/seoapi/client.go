// Package seoapi provides HTTP clients for the external SEO data services:
// backlink counts, analytics traffic, search position, noindex detection and
// the keyword source. All clients share one error contract so the workers
// can treat rate limits and account failures uniformly.
package seoapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// defaultRetryAfter is assumed when a 429 response carries no
	// Retry-After header.
	defaultRetryAfter = 30 * time.Second

	// maxErrorBodyBytes bounds how much of an error response is read for
	// diagnostics.
	maxErrorBodyBytes = 2048
)

// API names used for rate limiter keys and diagnostics.
const (
	APIBacklinks     = "backlinks"
	APIAnalytics     = "analytics"
	APISearchConsole = "search_console"
	APINoindex       = "noindex"
	APIKeywords      = "keywords"
)

// ErrAccountBlocked means the external account cannot serve any further
// requests (missing credentials, exhausted plan). Workers respond by filling
// the remaining items with error sentinels instead of retrying forever.
var ErrAccountBlocked = errors.New("external account blocked or unconfigured")

// ErrNotFound means the service has no data for the requested page (e.g. the
// page does not rank for its keyword at all). Not an error condition for the
// caller; it maps to a sentinel value.
var ErrNotFound = errors.New("no data for requested page")

// RateLimitError is returned when the external API asks us to back off.
type RateLimitError struct {
	// API is the logical API name the limit applies to.
	API string
	// RetryAfter is how long the service asked us to wait.
	RetryAfter time.Duration
	// Shared marks a quota shared with sibling APIs (e.g. one Google
	// project quota covering both analytics and search console), so the
	// pause must propagate to them too.
	Shared bool
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s API rate limited, retry after %s", e.API, e.RetryAfter)
}

// AsRateLimit unwraps a RateLimitError if err carries one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// doJSON performs the request and decodes a JSON response into out, mapping
// the shared status-code contract: 429 to RateLimitError, 401/402/403 to
// ErrAccountBlocked, 404 to ErrNotFound.
func doJSON(client *http.Client, api string, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", api, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			API:        api,
			RetryAfter: parseRetryAfter(resp),
			Shared:     resp.Header.Get("X-Shared-Quota") == "true",
		}
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusPaymentRequired,
		resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", api, ErrAccountBlocked)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", api, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%s returned status %d: %s", api, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("failed to decode %s response: %w", api, decodeErr)
	}

	return nil
}

// parseRetryAfter reads the Retry-After header, falling back to a default.
func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultRetryAfter
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return defaultRetryAfter
	}

	return time.Duration(seconds) * time.Second
}
