// Package openai provides an OpenAI-backed implementation of embedder.Provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const (
	// defaultDimensions matches text-embedding-ada-002.
	defaultDimensions = 1536

	// defaultBatchSize is the number of texts sent per embeddings request.
	defaultBatchSize = 64

	// defaultMaxConcurrency bounds in-flight embeddings requests so batch
	// calls stay inside the provider's rate limits.
	defaultMaxConcurrency = 4
)

// Client is an OpenAI embedding client.
// It implements the embedder.Provider interface on top of the Embeddings API.
type Client struct {
	client         *openai.Client
	model          openai.EmbeddingModel
	dimensions     int
	batchSize      int
	maxConcurrency int
}

// Config is the configuration for the OpenAI embedding client.
type Config struct {
	// APIKey is the API key (required).
	APIKey string

	// Model is the embedding model name. Empty or unrecognized names use
	// text-embedding-ada-002.
	Model string

	// BaseURL is the API base URL. Empty uses the official OpenAI address.
	BaseURL string

	// Dimensions is the vector dimension. Zero uses the model default.
	Dimensions int

	// BatchSize is the number of texts per request in EmbedBatch.
	BatchSize int

	// MaxConcurrency bounds concurrent requests issued by EmbedBatch.
	MaxConcurrency int
}

// NewClient creates a new OpenAI embedding client.
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	client := openai.NewClientWithConfig(config)

	model := openai.AdaEmbeddingV2
	if cfg.Model != "" {
		var m openai.EmbeddingModel
		if err := m.UnmarshalText([]byte(cfg.Model)); err == nil && m != openai.Unknown {
			model = m
		}
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = defaultDimensions
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	return &Client{
		client:         client,
		model:          model,
		dimensions:     dimensions,
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
	}, nil
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("embedding generation failed: no data returned from OpenAI API")
	}

	return toFloat64(resp.Data[0].Embedding), nil
}

// EmbedBatch converts multiple texts to vectors.
//
// Texts are split into sub-batches which run concurrently under a bounded
// worker limit. Output order matches input order. A failed sub-batch leaves
// nil vectors at its positions; the errors of all failed sub-batches are
// joined and returned alongside the partial result.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float64, len(texts))

	var mu sync.Mutex
	var batchErrs []error

	g, gctx := errgroup.Group{}, ctx
	g.SetLimit(c.maxConcurrency)

	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		g.Go(func() error {
			resp, err := c.client.CreateEmbeddings(gctx, openai.EmbeddingRequest{
				Input: texts[start:end],
				Model: c.model,
			})
			if err == nil && len(resp.Data) != end-start {
				err = fmt.Errorf("embedding generation failed: got %d results, expected %d", len(resp.Data), end-start)
			}
			if err != nil {
				mu.Lock()
				batchErrs = append(batchErrs, fmt.Errorf("batch [%d:%d]: %w", start, end, err))
				mu.Unlock()
				// Siblings must proceed, so the group never sees an error.
				return nil
			}
			for i, data := range resp.Data {
				embeddings[start+i] = toFloat64(data.Embedding)
			}
			return nil
		})
	}

	_ = g.Wait()

	return embeddings, errors.Join(batchErrs...)
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the client connection.
// The OpenAI SDK client does not require explicit closing; this method is
// retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

// toFloat64 converts the SDK's float32 vectors to float64.
func toFloat64(embedding32 []float32) []float64 {
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}
	return embedding64
}
