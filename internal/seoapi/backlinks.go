package seoapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// BacklinksClient talks to the backlink-count API.
type BacklinksClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// BacklinksOption configures a BacklinksClient.
type BacklinksOption func(*BacklinksClient)

// WithBacklinksHTTPClient sets a custom HTTP client.
func WithBacklinksHTTPClient(client *http.Client) BacklinksOption {
	return func(c *BacklinksClient) { c.httpClient = client }
}

// NewBacklinksClient creates a backlink-count API client.
func NewBacklinksClient(baseURL, token string, opts ...BacklinksOption) *BacklinksClient {
	client := &BacklinksClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// backlinksResponse is the count endpoint's payload.
type backlinksResponse struct {
	Count int64 `json:"count"`
}

// Count returns the number of backlinks pointing at the page.
func (c *BacklinksClient) Count(ctx context.Context, pageURL string) (int64, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/backlinks/count?target=%s", c.baseURL, url.QueryEscape(pageURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create backlinks request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	var response backlinksResponse
	if doErr := doJSON(c.httpClient, APIBacklinks, req, &response); doErr != nil {
		return 0, doErr
	}

	return response.Count, nil
}
