package embedding

import "context"

// Embedding is the contract every embedding provider implements. Providers
// map text to a fixed-length vector and report token usage for accounting.
// Provider failures (invalid input, auth, rate limiting) surface as errors;
// there is no silent degradation at this layer.
type Embedding interface {
	// Embed generates an embedding vector for a single text and returns the
	// number of tokens consumed.
	Embed(ctx context.Context, text string) ([]float32, int, error)

	// EmbedBatch generates embedding vectors for a batch of texts and
	// returns the total number of tokens consumed.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error)
}
