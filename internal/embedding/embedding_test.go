package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalio/medsearch/internal/config"
)

// scriptedModel records batch sizes and optionally fails after a number of
// batches.
type scriptedModel struct {
	batchSizes []int
	failAfter  int // fail on batch index failAfter; -1 never fails
}

func (m *scriptedModel) Embed(ctx context.Context, text string) ([]float32, int, error) {
	vectors, tokens, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, 0, err
	}
	return vectors[0], tokens, nil
}

func (m *scriptedModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	if m.failAfter >= 0 && len(m.batchSizes) == m.failAfter {
		return nil, 0, errors.New("rate limited")
	}
	m.batchSizes = append(m.batchSizes, len(texts))
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, len(texts) * 4, nil
}

func TestBatchClientSplitsBatches(t *testing.T) {
	model := &scriptedModel{failAfter: -1}
	client := NewBatchClient(model, config.EmbeddingConfig{BatchSize: 10})

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = "text"
	}

	vectors, tokens, err := client.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Len(t, vectors, 25)
	assert.Equal(t, 100, tokens)
	assert.Equal(t, []int{10, 10, 5}, model.batchSizes)
}

func TestBatchClientPropagatesFailure(t *testing.T) {
	model := &scriptedModel{failAfter: 1}
	client := NewBatchClient(model, config.EmbeddingConfig{BatchSize: 10})

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = "text"
	}

	_, _, err := client.EmbedBatch(context.Background(), texts)
	assert.Error(t, err)
}

func TestNewModelUnknownProvider(t *testing.T) {
	_, err := NewModel(config.EmbeddingConfig{Provider: "quantum"})
	assert.Error(t, err)
}
