package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
)

// Ollama API constants.
const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model for prose notes.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout for the initial health check.
	OllamaConnectTimeout = 5 * time.Second
)

// OllamaConfig configures the Ollama encoder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Dimensions can be set to override auto-detection (0 = auto-detect).
	Dimensions int

	// BatchSize for batch embedding requests (default: 32).
	BatchSize int

	// Timeout for API requests (default: 60s).
	Timeout time.Duration

	// MaxRetries for transient failures (default: 3).
	MaxRetries int

	// RetryDelay is the initial backoff delay (default: 1s).
	RetryDelay time.Duration

	// SkipHealthCheck skips the initial availability check (for testing).
	SkipHealthCheck bool

	// Logger for request diagnostics.
	Logger *slog.Logger
}

// ollamaEmbedRequest is the Ollama /api/embed request.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the Ollama /api/embed response.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaEncoder embeds text via a local Ollama server.
//
// Calls are serialized through a single mutex: the model holds expensive GPU
// state and concurrent requests degrade it. Query and index paths share this
// one encoder.
type OllamaEncoder struct {
	config OllamaConfig
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	dims   int
	closed bool
}

var _ Encoder = (*OllamaEncoder)(nil)

// NewOllamaEncoder creates an encoder backed by an Ollama server and verifies
// it is reachable unless SkipHealthCheck is set.
func NewOllamaEncoder(ctx context.Context, cfg OllamaConfig) (*OllamaEncoder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	e := &OllamaEncoder{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
		dims:   cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		if !e.Available(ctx) {
			return nil, vmcperrors.EncoderError(
				fmt.Sprintf("ollama not reachable at %s", cfg.Host), nil).
				WithSuggestion("start ollama or configure encoder.kind: static")
		}
	}

	return e, nil
}

// Embed generates an embedding for a single text.
func (e *OllamaEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Inputs beyond the
// configured batch size are split into sequential requests.
func (e *OllamaEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, vmcperrors.EncoderError("encoder is closed", nil)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	if e.dims == 0 && len(vectors) > 0 {
		e.dims = len(vectors[0])
	}
	return vectors, nil
}

// embedWithRetry retries transient failures with exponential backoff.
func (e *OllamaEncoder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	delay := e.config.RetryDelay
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vectors, err := e.doEmbed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if attempt < e.config.MaxRetries {
			e.logger.Warn("Embedding request failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return nil, vmcperrors.EncoderError(
		fmt.Sprintf("embedding failed after %d retries", e.config.MaxRetries), lastErr)
}

// doEmbed performs one /api/embed call.
func (e *OllamaEncoder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := ollamaEmbedRequest{Model: e.config.Model, Input: texts}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.config.Host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs",
			len(result.Embeddings), len(texts))
	}

	for i := range result.Embeddings {
		normalizeVector(result.Embeddings[i])
	}
	return result.Embeddings, nil
}

// Dimensions returns the embedding dimension. Zero until the first
// successful call when auto-detection is in use.
func (e *OllamaEncoder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// Name returns the encoder identifier stamped into index metadata.
func (e *OllamaEncoder) Name() string {
	return "ollama:" + e.config.Model
}

// Available checks whether the Ollama server responds.
func (e *OllamaEncoder) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases resources.
func (e *OllamaEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
