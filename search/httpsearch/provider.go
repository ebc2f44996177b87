// Package httpsearch implements search.Provider against a generic JSON
// search API (the shape exposed by most hosted web-search backends:
// POST {query} -> {results: [{title,url,snippet}]}), rate-limited through
// the Limiter passed in Options (cmd/research gives it its own AIMD token
// bucket, separate from the one guarding LLM calls; SPEC_FULL.md 11.4).
package httpsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/search"
)

// Limiter is the subset of middleware.AdaptiveRateLimiter used here,
// isolated so tests can supply a no-op.
type Limiter interface {
	WaitN(ctx context.Context, n int) error
	Observe(err error)
}

// Options configures the HTTP search provider.
type Options struct {
	Client    *http.Client
	Endpoint  string
	APIKey    string
	RateLimit Limiter
}

// Provider implements search.Provider over a hosted HTTP search API.
type Provider struct {
	client   *http.Client
	endpoint string
	apiKey   string
	limiter  Limiter
}

// New builds an HTTP-backed search.Provider.
func New(opts Options) (*Provider, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("search endpoint is required")
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Provider{client: client, endpoint: opts.Endpoint, apiKey: opts.APIKey, limiter: opts.RateLimit}, nil
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

var _ search.Provider = (*Provider)(nil)

// Search issues one query against the configured endpoint.
func (p *Provider) Search(ctx context.Context, query string) ([]search.Result, error) {
	if p.limiter != nil {
		const estimatedQueryTokens = 50
		if err := p.limiter.WaitN(ctx, estimatedQueryTokens); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(searchRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("httpsearch: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpsearch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		searchErr := engineerrors.NewSearchError("http", err.Error(), true, err)
		if p.limiter != nil {
			p.limiter.Observe(searchErr)
		}
		return nil, searchErr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		searchErr := engineerrors.NewSearchError("http", fmt.Sprintf("status %d", resp.StatusCode), true, nil)
		if p.limiter != nil {
			p.limiter.Observe(searchErr)
		}
		return nil, searchErr
	}
	if resp.StatusCode >= 400 {
		searchErr := engineerrors.NewSearchError("http", fmt.Sprintf("status %d", resp.StatusCode), false, nil)
		if p.limiter != nil {
			p.limiter.Observe(searchErr)
		}
		return nil, searchErr
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("httpsearch: decode response: %w", err)
	}
	if p.limiter != nil {
		p.limiter.Observe(nil)
	}

	results := make([]search.Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, search.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return results, nil
}
