// Package ollama talks to a local Ollama server for text embeddings.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/WireVisionAI/wirevision-mvp/pkg/resilience"
)

// Options configures the embedding client.
type Options struct {
	Model   string
	Timeout time.Duration
	// Rate is the request budget per second against the Ollama server.
	Rate  float64
	Burst int
}

// DefaultOptions returns sensible defaults for a local server.
func DefaultOptions() Options {
	return Options{
		Model:   "nomic-embed-text",
		Timeout: 30 * time.Second,
		Rate:    10,
		Burst:   5,
	}
}

// Client is an Ollama-backed embedder.
type Client struct {
	baseURL string
	model   string
	limiter *resilience.Limiter
	http    *http.Client
}

// New creates a Client for the Ollama server at baseURL.
func New(baseURL string, opts Options) *Client {
	return &Client{
		baseURL: baseURL,
		model:   opts.Model,
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: opts.Rate, Burst: opts.Burst}),
		http:    &http.Client{Timeout: opts.Timeout},
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns one embedding per input text, in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("ollama: embed [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (c *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	vec := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
