// Package embedding wraps the external text->vector service. The model runs
// out of process; this client only batches requests and validates shapes.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/opsmind/monchat/config"
)

// ErrMalformedResponse reports a provider payload that does not line up 1:1
// with the request, which callers treat as a failed call.
var ErrMalformedResponse = errors.New("embedding: malformed provider response")

// Provider turns a batch of texts into vectors, preserving input order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Client talks to an OpenAI-compatible embeddings endpoint.
type Client struct {
	baseURL    string
	path       string
	model      string
	apiKey     string
	device     string
	batchSize  int
	httpClient *http.Client
}

func NewClient(cfg config.EmbeddingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 16
	}
	path := cfg.Path
	if path == "" {
		path = "/v1/embeddings"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		path:       path,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		device:     cfg.Device,
		batchSize:  batch,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Embed batches texts through the provider. Output length and order match the
// input exactly; anything else fails with ErrMalformedResponse.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	requestBody := map[string]interface{}{
		"model": c.model,
		"input": texts,
	}
	if c.device != "" && c.device != "auto" {
		requestBody["device"] = c.device
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status: %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrMalformedResponse, len(parsed.Data), len(texts))
	}

	vecs := make([][]float32, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrMalformedResponse, d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("%w: missing vector for input %d", ErrMalformedResponse, i)
		}
	}
	return vecs, nil
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the process-wide provider, constructed exactly once on
// first use. Concurrent first callers block on the same initialization.
// Components still receive it via injection; this only guards construction.
func Default(cfg config.EmbeddingConfig) Provider {
	defaultOnce.Do(func() {
		defaultClient = NewClient(cfg)
	})
	return defaultClient
}
