package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
)

// Cross-encoder service defaults.
const (
	DefaultRerankerEndpoint = "http://localhost:9659"
	DefaultRerankerModel    = "reranker-small"
	DefaultRerankerTimeout  = 30 * time.Second
)

// Reranker scores query/document pairs with a cross-encoder. Scores come
// back in input order, one per document, higher is more relevant.
type Reranker interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)

	// Available reports whether the backing service is reachable.
	Available(ctx context.Context) bool

	Close() error
}

// NoopReranker preserves the incoming order. Used when reranking is
// disabled.
type NoopReranker struct{}

var _ Reranker = (*NoopReranker)(nil)

// Score assigns decreasing scores so the input order survives a sort.
func (n *NoopReranker) Score(_ context.Context, _ string, documents []string) ([]float64, error) {
	scores := make([]float64, len(documents))
	for i := range documents {
		scores[i] = 1.0 - float64(i)*0.01
	}
	return scores, nil
}

func (n *NoopReranker) Available(context.Context) bool { return true }
func (n *NoopReranker) Close() error                   { return nil }

// HTTPRerankerConfig configures the cross-encoder service client.
type HTTPRerankerConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// HTTPReranker talks to a local cross-encoder inference server.
type HTTPReranker struct {
	client *http.Client
	config HTTPRerankerConfig
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates the client. No health check here; the pipeline
// probes Available before each rerank and degrades on failure.
func NewHTTPReranker(cfg HTTPRerankerConfig) *HTTPReranker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankerEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankerModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}
	return &HTTPReranker{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Score posts the query/document batch and returns per-document scores.
func (r *HTTPReranker) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, vmcperrors.EncoderError("encoding rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.config.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, vmcperrors.EncoderError("building rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, vmcperrors.EncoderError("calling reranker", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, vmcperrors.EncoderError(
			fmt.Sprintf("reranker returned HTTP %d: %s", resp.StatusCode, string(data)), nil)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, vmcperrors.EncoderError("decoding rerank response", err)
	}
	if len(parsed.Scores) != len(documents) {
		return nil, vmcperrors.EncoderError(
			fmt.Sprintf("reranker returned %d scores for %d documents",
				len(parsed.Scores), len(documents)), nil)
	}
	return parsed.Scores, nil
}

// Available probes the service health endpoint.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (r *HTTPReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
