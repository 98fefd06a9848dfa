package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalio/medsearch/internal/config"
)

// NewModel creates an Embedding provider from configuration.
func NewModel(cfg config.EmbeddingConfig) (Embedding, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIModel(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "ollama":
		return NewOllamaModel(cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// BatchClient wraps an Embedding provider with request batching: bulk
// embedding runs in batches of at most batchSize texts with a delay between
// batches to respect provider rate limits.
type BatchClient struct {
	model     Embedding
	batchSize int
	delay     time.Duration
}

// NewBatchClient creates a BatchClient. A non-positive batchSize falls back
// to 64.
func NewBatchClient(model Embedding, cfg config.EmbeddingConfig) *BatchClient {
	size := cfg.BatchSize
	if size <= 0 {
		size = 64
	}
	return &BatchClient{
		model:     model,
		batchSize: size,
		delay:     time.Duration(cfg.BatchDelayMs) * time.Millisecond,
	}
}

// Embed generates an embedding for a single text.
func (c *BatchClient) Embed(ctx context.Context, text string) ([]float32, int, error) {
	return c.model.Embed(ctx, text)
}

// EmbedBatch generates embeddings for all texts, splitting the request into
// provider-sized batches. Any batch failure aborts the whole operation.
func (c *BatchClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	vectors := make([][]float32, 0, len(texts))
	totalTokens := 0

	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if start > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, totalTokens, ctx.Err()
			case <-time.After(c.delay):
			}
		}

		batch, tokens, err := c.model.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, totalTokens, fmt.Errorf("embedding batch %d-%d failed: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
		totalTokens += tokens
	}

	return vectors, totalTokens, nil
}

var _ Embedding = (*BatchClient)(nil)
