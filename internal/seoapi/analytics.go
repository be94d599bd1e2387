package seoapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// dateLayout is the date format the analytics and search-console APIs use.
const dateLayout = "2006-01-02"

// Sessions holds the traffic figures for one page over a date range.
type Sessions struct {
	// Total and Organic are session counts over the whole range.
	Total   int64 `json:"total"`
	Organic int64 `json:"organic"`
	// TotalMonthly and OrganicMonthly are the per-month averages the
	// median and classification work from.
	TotalMonthly   int64 `json:"total_monthly"`
	OrganicMonthly int64 `json:"organic_monthly"`
}

// AnalyticsClient talks to the analytics (traffic) API.
type AnalyticsClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// AnalyticsOption configures an AnalyticsClient.
type AnalyticsOption func(*AnalyticsClient)

// WithAnalyticsHTTPClient sets a custom HTTP client.
func WithAnalyticsHTTPClient(client *http.Client) AnalyticsOption {
	return func(c *AnalyticsClient) { c.httpClient = client }
}

// NewAnalyticsClient creates an analytics API client.
func NewAnalyticsClient(baseURL, token string, opts ...AnalyticsOption) *AnalyticsClient {
	client := &AnalyticsClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Sessions returns total and organic session counts for a page between the
// given dates.
func (c *AnalyticsClient) Sessions(
	ctx context.Context,
	pageURL string,
	since, until time.Time,
) (*Sessions, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/sessions?page=%s&since=%s&until=%s",
		c.baseURL,
		url.QueryEscape(pageURL),
		since.Format(dateLayout),
		until.Format(dateLayout),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	var response Sessions
	if doErr := doJSON(c.httpClient, APIAnalytics, req, &response); doErr != nil {
		return nil, doErr
	}

	return &response, nil
}
