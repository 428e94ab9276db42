// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package embedding

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/provider"
)

// Embedder turns a batch of texts into vectors. Client is the production
// implementation; tests substitute a scripted fake.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
}

// Client calls the embedding provider's batch endpoint through the same
// resilient HTTP stack (circuit breaker + token bucket) as the content
// providers.
type Client struct {
	cfg    config.EmbeddingProviderConfig
	client *provider.ResilientClient
}

// NewClient builds the embedding provider client.
func NewClient(cfg config.EmbeddingProviderConfig, shared config.ProviderConfig) *Client {
	return &Client{cfg: cfg, client: provider.NewResilientClient("embedding", shared)}
}

func (c *Client) ModelID() string { return c.cfg.ModelID }

// Embed requests vectors for a batch of texts. The caller bounds the batch
// size; this method sends exactly one request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": c.cfg.ModelID,
		"input": texts,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(out.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// HTTPClient exposes the underlying resilient client for health reporting.
func (c *Client) HTTPClient() *provider.ResilientClient { return c.client }
