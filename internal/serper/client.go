// Package serper is a client for the Serper web-search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
)

// Client calls the Serper search endpoint. The provider is treated as
// unreliable per page; callers catch and skip individual page failures.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Logger
}

// OrganicResult is one organic search result row.
type OrganicResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// SearchResponse is the provider's search payload.
type SearchResponse struct {
	Organic []OrganicResult `json:"organic"`
}

type searchRequest struct {
	Q    string `json:"q"`
	Num  int    `json:"num"`
	Page int    `json:"page"`
}

// NewClient creates a search client. A missing API key is a configuration
// failure raised here, before any call is attempted.
func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: serper", domain.ErrMissingAPIKey)
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}, nil
}

// Search fetches one page of organic results for the given query.
func (c *Client) Search(ctx context.Context, query string, resultsPerPage, page int) ([]OrganicResult, error) {
	payload, err := json.Marshal(searchRequest{Q: query, Num: resultsPerPage, Page: page})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	endpoint := c.baseURL + "/search"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search API error: %d %s: %s",
			resp.StatusCode, resp.Status, string(body))
	}

	var result SearchResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	c.logger.Debug("search page fetched",
		logger.String("query", query),
		logger.Int("page", page),
		logger.Int("results", len(result.Organic)),
		logger.Duration("request_duration", time.Since(start)))

	return result.Organic, nil
}
