package serp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/pricewise/pkg/httpclient"
)

// DefaultSerperEndpoint is the Serper Google search API.
const DefaultSerperEndpoint = "https://google.serper.dev/search"

// SerperConfig configures the Serper provider.
type SerperConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Serper queries Google through the Serper JSON API.
type Serper struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
}

var _ Provider = (*Serper)(nil)

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []Result `json:"organic"`
}

// NewSerper creates a Serper provider.
func NewSerper(cfg SerperConfig) (*Serper, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("serper: api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSerperEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	return &Serper{client: client, endpoint: cfg.Endpoint, apiKey: cfg.APIKey}, nil
}

// Search returns up to limit organic results for query.
func (s *Serper) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	limit = clampLimit(limit)

	var resp serperResponse
	headers := map[string]string{"X-API-KEY": s.apiKey}
	if err := s.client.PostJSON(ctx, s.endpoint, headers, serperRequest{Q: query, Num: limit}, &resp); err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}

	results := resp.Organic
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
