// Package search provides the SearchProvider collaborator used by
// web_research when the active LLM does not natively ground responses
// (§4.1.2). It is grounded on the seenURLs/Source dedup idiom found in the
// pack's research-agent reference (other_examples deep-research agent.go),
// narrowed to a single Search call per query/segment rather than that
// reference's pagination and content-fetch modes.
package search

import (
	"context"
	"net/url"
	"strings"
)

// Result is a single search hit returned by a Provider.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Provider is the collaborator interface web_research calls per branch.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// NormalizeURL strips common tracking query parameters and a trailing slash
// so equivalent URLs dedup to the same key, following the reference agent's
// normalizeURL helper.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/")
	}
	q := u.Query()
	for _, param := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term", "fbclid", "gclid", "ref", "source"} {
		q.Del(param)
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
