package seoapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PositionClient talks to the search-console API for average search
// positions.
type PositionClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// PositionOption configures a PositionClient.
type PositionOption func(*PositionClient)

// WithPositionHTTPClient sets a custom HTTP client.
func WithPositionHTTPClient(client *http.Client) PositionOption {
	return func(c *PositionClient) { c.httpClient = client }
}

// NewPositionClient creates a search-console API client.
func NewPositionClient(baseURL, token string, opts ...PositionOption) *PositionClient {
	client := &PositionClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// positionResponse is the search-analytics endpoint's payload.
type positionResponse struct {
	Position float64 `json:"position"`
}

// AveragePosition returns the page's average search position for the given
// keyword over the date range. Returns (found=false) when the page does not
// rank for the keyword at all; the caller records the not-found sentinel.
func (c *PositionClient) AveragePosition(
	ctx context.Context,
	pageURL, keyword string,
	since, until time.Time,
) (position float64, found bool, err error) {
	endpoint := fmt.Sprintf(
		"%s/v1/search-analytics?page=%s&keyword=%s&since=%s&until=%s",
		c.baseURL,
		url.QueryEscape(pageURL),
		url.QueryEscape(keyword),
		since.Format(dateLayout),
		until.Format(dateLayout),
	)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if reqErr != nil {
		return 0, false, fmt.Errorf("failed to create position request: %w", reqErr)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	var response positionResponse
	if doErr := doJSON(c.httpClient, APISearchConsole, req, &response); doErr != nil {
		if errors.Is(doErr, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, doErr
	}

	return response.Position, true, nil
}
