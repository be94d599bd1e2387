package seoapi

import (
	"context"
	"fmt"
	"net/http"
)

// Keyword is the resolved primary keyword for a post. The keyword engine is
// a black box to the audit: it may return a user-approved keyword, a manual
// override or its own suggestion.
type Keyword struct {
	Value    string `json:"value"`
	Approved bool   `json:"approved"`
}

// KeywordClient talks to the keyword suggestion service.
type KeywordClient struct {
	baseURL    string
	httpClient *http.Client
}

// KeywordOption configures a KeywordClient.
type KeywordOption func(*KeywordClient)

// WithKeywordHTTPClient sets a custom HTTP client.
func WithKeywordHTTPClient(client *http.Client) KeywordOption {
	return func(c *KeywordClient) { c.httpClient = client }
}

// NewKeywordClient creates a keyword source client.
func NewKeywordClient(baseURL string, opts ...KeywordOption) *KeywordClient {
	client := &KeywordClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Primary returns the primary keyword for a post.
func (c *KeywordClient) Primary(ctx context.Context, postID int64) (*Keyword, error) {
	endpoint := fmt.Sprintf("%s/v1/keywords/%d", c.baseURL, postID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword request: %w", err)
	}

	var response Keyword
	if doErr := doJSON(c.httpClient, APIKeywords, req, &response); doErr != nil {
		return nil, doErr
	}

	return &response, nil
}
