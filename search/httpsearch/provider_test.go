package httpsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	engineerrors "github.com/deepresearchhq/engine/errors"
)

func TestSearchDecodesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "euro 2024 winner", req.Query)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(searchResponse{Results: []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		}{{Title: "UEFA Euro 2024", URL: "https://uefa.example/euro2024", Snippet: "Spain won"}}}))
	}))
	defer srv.Close()

	p, err := New(Options{Endpoint: srv.URL})
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "euro 2024 winner")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "https://uefa.example/euro2024", results[0].URL)
}

func TestSearchMapsRateLimitStatusToTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := New(Options{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "q")
	require.Error(t, err)
	require.True(t, engineerrors.IsTransient(err))
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
