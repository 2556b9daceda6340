package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeRerankServer(t *testing.T, scores func(docs []string) []float64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/rerank", func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: scores(req.Documents)})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPRerankerScore(t *testing.T) {
	srv := newFakeRerankServer(t, func(docs []string) []float64 {
		out := make([]float64, len(docs))
		for i := range docs {
			out[i] = float64(len(docs) - i)
		}
		return out
	})

	r := NewHTTPReranker(HTTPRerankerConfig{Endpoint: srv.URL})
	defer r.Close()

	assert.True(t, r.Available(context.Background()))

	scores, err := r.Score(context.Background(), "query", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2, 1}, scores)
}

func TestHTTPRerankerEmptyInput(t *testing.T) {
	r := NewHTTPReranker(HTTPRerankerConfig{Endpoint: "http://127.0.0.1:1"})
	scores, err := r.Score(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}

func TestHTTPRerankerScoreCountMismatch(t *testing.T) {
	srv := newFakeRerankServer(t, func([]string) []float64 {
		return []float64{1}
	})

	r := NewHTTPReranker(HTTPRerankerConfig{Endpoint: srv.URL})
	_, err := r.Score(context.Background(), "query", []string{"a", "b"})
	assert.Error(t, err)
}

func TestHTTPRerankerUnavailable(t *testing.T) {
	r := NewHTTPReranker(HTTPRerankerConfig{Endpoint: "http://127.0.0.1:1"})
	assert.False(t, r.Available(context.Background()))
}

func TestNoopRerankerPreservesOrder(t *testing.T) {
	r := &NoopReranker{}
	scores, err := r.Score(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Greater(t, scores[0], scores[1])
	assert.Greater(t, scores[1], scores[2])
}
