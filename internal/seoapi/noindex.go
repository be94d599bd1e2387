package seoapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/seo-audit/internal/domain"
)

// defaultUserAgent identifies the audit fetcher to the site being checked.
const defaultUserAgent = "seo-audit/1.0 (+noindex-check)"

// NoindexClient determines whether a page is excluded from search indexes.
// Unlike the other clients it fetches the page itself: the signal lives in
// the X-Robots-Tag response header and the robots meta tag.
type NoindexClient struct {
	httpClient *http.Client
	userAgent  string
}

// NoindexOption configures a NoindexClient.
type NoindexOption func(*NoindexClient)

// WithNoindexHTTPClient sets a custom HTTP client.
func WithNoindexHTTPClient(client *http.Client) NoindexOption {
	return func(c *NoindexClient) { c.httpClient = client }
}

// WithNoindexUserAgent overrides the User-Agent header.
func WithNoindexUserAgent(ua string) NoindexOption {
	return func(c *NoindexClient) { c.userAgent = ua }
}

// NewNoindexClient creates a noindex detector.
func NewNoindexClient(opts ...NoindexOption) *NoindexClient {
	client := &NoindexClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Check fetches the page and returns the noindex tri-state. A page that
// cannot be fetched at all is reported as an error, not as indexed.
func (c *NoindexClient) Check(ctx context.Context, pageURL string) (int16, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return domain.NoindexErr, fmt.Errorf("failed to create noindex request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NoindexErr, fmt.Errorf("noindex fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.NoindexErr, &RateLimitError{
			API:        APINoindex,
			RetryAfter: parseRetryAfter(resp),
		}
	}
	// A gone page is effectively deindexed.
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return domain.NoindexYes, nil
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NoindexErr, fmt.Errorf("noindex fetch returned status %d", resp.StatusCode)
	}

	if headerHasNoindex(resp.Header) {
		return domain.NoindexYes, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.NoindexErr, fmt.Errorf("failed to parse page: %w", err)
	}

	if metaHasNoindex(doc) {
		return domain.NoindexYes, nil
	}

	return domain.NoindexNo, nil
}

// headerHasNoindex checks every X-Robots-Tag header value for a noindex
// directive.
func headerHasNoindex(header http.Header) bool {
	for _, value := range header.Values("X-Robots-Tag") {
		if strings.Contains(strings.ToLower(value), "noindex") {
			return true
		}
	}
	return false
}

// metaHasNoindex checks robots meta tags, including crawler-specific ones
// like googlebot.
func metaHasNoindex(doc *goquery.Document) bool {
	noindex := false
	doc.Find(`meta[name]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		switch strings.ToLower(name) {
		case "robots", "googlebot", "bingbot":
		default:
			return true
		}

		content, _ := s.Attr("content")
		if strings.Contains(strings.ToLower(content), "noindex") {
			noindex = true
			return false
		}
		return true
	})
	return noindex
}
