package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalio/medsearch/internal/config"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/pkg/logger"
)

type fakeEmbedder struct {
	fail  bool
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, int, error) {
	f.calls++
	if f.fail {
		return nil, 0, errors.New("provider unavailable")
	}
	return []float32{0.1, 0.2, 0.3}, 3, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	f.calls++
	if f.fail {
		return nil, 0, errors.New("provider unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, 3 * len(texts), nil
}

type fakeVectorStore struct {
	chunks []Hit
	tables []Hit
	err    error
}

func (f *fakeVectorStore) QueryChunks(ctx context.Context, vector []float32, userID string, limit int) ([]Hit, error) {
	return f.chunks, f.err
}

func (f *fakeVectorStore) QueryTables(ctx context.Context, vector []float32, userID string, category models.TableCategory, limit int) ([]Hit, error) {
	if category == "" {
		return f.tables, f.err
	}
	var out []Hit
	for _, h := range f.tables {
		if h.Category == category {
			out = append(out, h)
		}
	}
	return out, f.err
}

type fakeLexicalStore struct {
	chunks []Hit
	tables []Hit
	tokens []string
	err    error
}

func (f *fakeLexicalStore) SearchChunks(ctx context.Context, tokens []string, userID string, limit int) ([]Hit, error) {
	f.tokens = tokens
	return f.chunks, f.err
}

func (f *fakeLexicalStore) SearchTables(ctx context.Context, tokens []string, userID string, category models.TableCategory, limit int) ([]Hit, error) {
	f.tokens = tokens
	if category == "" {
		return f.tables, f.err
	}
	var out []Hit
	for _, h := range f.tables {
		if h.Category == category {
			out = append(out, h)
		}
	}
	return out, f.err
}

func testConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		SemanticThreshold:  0.5,
		HybridThreshold:    0.05,
		QualityThreshold:   0.7,
		GoodSemanticWeight: 0.8,
		PoorSemanticWeight: 0.3,
		MaxResults:         10,
		MaxQueryTokens:     10,
	}
}

func newTestEngine(embedder *fakeEmbedder, vectors *fakeVectorStore, lexical *fakeLexicalStore) *Engine {
	return NewEngine(embedder, vectors, lexical, testConfig(), logger.New("test", "", ""))
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"semantic":       ModeSemantic,
		"lexical":        ModeLexical,
		"keyword":        ModeLexical,
		"hybrid":         ModeHybrid,
		"tables":         ModeTables,
		"medical_tables": ModeTables,
	}
	for name, want := range cases {
		mode, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, want, mode)
	}

	_, err := ParseMode("telepathic")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestTokenize(t *testing.T) {
	t.Run("lowercase, punctuation stripped, short tokens dropped", func(t *testing.T) {
		tokens := Tokenize("What is the Glucose level?!", 10)
		assert.Equal(t, []string{"what", "the", "glucose", "level"}, tokens)
	})

	t.Run("token cap", func(t *testing.T) {
		tokens := Tokenize("one two three four five six seven eight nine ten eleven twelve", 3)
		assert.Len(t, tokens, 3)
	})

	t.Run("nothing usable", func(t *testing.T) {
		assert.Empty(t, Tokenize("a b c! ?", 10))
	})
}

func TestSearchUnknownMode(t *testing.T) {
	embedder := &fakeEmbedder{}
	engine := newTestEngine(embedder, &fakeVectorStore{}, &fakeLexicalStore{})

	_, err := engine.Search(context.Background(), "query", "user-1", Mode(42), Options{})
	assert.ErrorIs(t, err, ErrUnknownMode)
	// Rejected before any I/O: the embedding provider is never called.
	assert.Zero(t, embedder.calls)
}

func TestSearchSemantic(t *testing.T) {
	vectors := &fakeVectorStore{chunks: []Hit{
		{ID: "c1", Score: 0.91},
		{ID: "c2", Score: 0.55},
		{ID: "c3", Score: 0.42},
	}}
	engine := newTestEngine(&fakeEmbedder{}, vectors, &fakeLexicalStore{})

	results, err := engine.Search(context.Background(), "glucose levels", "user-1", ModeSemantic, Options{})
	require.NoError(t, err)

	// Threshold filtering: every returned similarity clears the threshold.
	require.Len(t, results, 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.5)
	}
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "c2", results[1].ID)
}

func TestSearchSemanticProviderFailure(t *testing.T) {
	engine := newTestEngine(&fakeEmbedder{fail: true}, &fakeVectorStore{}, &fakeLexicalStore{})

	_, err := engine.Search(context.Background(), "query", "user-1", ModeSemantic, Options{})
	assert.Error(t, err)
}

func TestSearchLexical(t *testing.T) {
	embedder := &fakeEmbedder{}
	lexical := &fakeLexicalStore{chunks: []Hit{
		{ID: "c2", Score: 0.4},
		{ID: "c1", Score: 0.9},
	}}
	engine := newTestEngine(embedder, &fakeVectorStore{}, lexical)

	results, err := engine.Search(context.Background(), "Metformin dosage?", "user-1", ModeLexical, Options{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, []string{"metformin", "dosage"}, lexical.tokens)
	// Lexical mode never calls the embedding provider.
	assert.Zero(t, embedder.calls)
}

func TestSearchHybridWorkedExample(t *testing.T) {
	// Semantic returns {1: 0.9}; lexical returns {1: 0.8, 2: 0.6}; quality
	// is good so weights are (0.8, 0.2). Expected merged scores:
	// id1 = 0.9*0.8 + 0.8*0.2 = 0.88, id2 = 0.6*0.2 = 0.12, ordered [1, 2].
	vectors := &fakeVectorStore{chunks: []Hit{{ID: "1", Score: 0.9}}}
	lexical := &fakeLexicalStore{chunks: []Hit{{ID: "1", Score: 0.8}, {ID: "2", Score: 0.6}}}
	engine := newTestEngine(&fakeEmbedder{}, vectors, lexical)

	results, err := engine.Search(context.Background(), "glucose result", "user-1", ModeHybrid, Options{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ID)
	assert.InDelta(t, 0.88, results[0].Score, 1e-9)
	assert.ElementsMatch(t, []string{SourceSemantic, SourceLexical}, results[0].Sources)

	assert.Equal(t, "2", results[1].ID)
	assert.InDelta(t, 0.12, results[1].Score, 1e-9)
	assert.Equal(t, []string{SourceLexical}, results[1].Sources)
}

func TestSearchHybridDeduplicationLaw(t *testing.T) {
	semantic := []Hit{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.8}, {ID: "c", Score: 0.7}}
	lexical := []Hit{{ID: "b", Score: 0.6}, {ID: "d", Score: 0.5}}

	vectors := &fakeVectorStore{chunks: semantic}
	lexicalStore := &fakeLexicalStore{chunks: lexical}
	engine := newTestEngine(&fakeEmbedder{}, vectors, lexicalStore)

	results, err := engine.Search(context.Background(), "shared identifier query", "user-1", ModeHybrid, Options{Threshold: 0.0001})
	require.NoError(t, err)

	// |merged| <= |semantic| + |lexical|, strictly less because the two
	// sub-result sets share an identifier.
	assert.LessOrEqual(t, len(results), len(semantic)+len(lexical))
	assert.Less(t, len(results), len(semantic)+len(lexical))
	assert.Len(t, results, 4)
}

func TestSearchHybridAdaptiveWeights(t *testing.T) {
	t.Run("poor semantic quality favors lexical", func(t *testing.T) {
		// No semantic hit clears the 0.7 quality threshold, so the weight
		// pair flips to (0.3, 0.7).
		vectors := &fakeVectorStore{chunks: []Hit{{ID: "s", Score: 0.4}}}
		lexical := &fakeLexicalStore{chunks: []Hit{{ID: "l", Score: 0.9}}}
		engine := newTestEngine(&fakeEmbedder{}, vectors, lexical)

		results, err := engine.Search(context.Background(), "rare term query", "user-1", ModeHybrid, Options{})
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, "l", results[0].ID)
		assert.InDelta(t, 0.9*0.7, results[0].Score, 1e-9)
		assert.InDelta(t, 0.4*0.3, results[1].Score, 1e-9)
	})

	t.Run("weights always sum to one", func(t *testing.T) {
		engine := newTestEngine(&fakeEmbedder{}, &fakeVectorStore{}, &fakeLexicalStore{})
		for _, hits := range [][]Hit{nil, {{Score: 0.9}}, {{Score: 0.1}}} {
			sw, lw := engine.weights(hits)
			assert.InDelta(t, 1.0, sw+lw, 1e-9)
		}
	})
}

func TestSearchHybridProviderFailure(t *testing.T) {
	// Embedding failure propagates: no implicit fallback to lexical-only.
	lexical := &fakeLexicalStore{chunks: []Hit{{ID: "l", Score: 0.9}}}
	engine := newTestEngine(&fakeEmbedder{fail: true}, &fakeVectorStore{}, lexical)

	_, err := engine.Search(context.Background(), "query terms", "user-1", ModeHybrid, Options{})
	assert.Error(t, err)
}

func TestSearchTables(t *testing.T) {
	vectors := &fakeVectorStore{tables: []Hit{
		{ID: "t1", Score: 0.9, IsTable: true, Category: models.TableCategoryLabResults},
		{ID: "t2", Score: 0.8, IsTable: true, Category: models.TableCategoryMedications},
	}}
	lexical := &fakeLexicalStore{tables: []Hit{
		{ID: "t1", Score: 0.7, IsTable: true, Category: models.TableCategoryLabResults},
	}}
	engine := newTestEngine(&fakeEmbedder{}, vectors, lexical)

	t.Run("merges both sources", func(t *testing.T) {
		results, err := engine.Search(context.Background(), "glucose range", "user-1", ModeTables, Options{})
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, "t1", results[0].ID)
		assert.ElementsMatch(t, []string{SourceSemantic, SourceLexical}, results[0].Sources)
	})

	t.Run("category filter", func(t *testing.T) {
		results, err := engine.Search(context.Background(), "glucose range", "user-1", ModeTables, Options{
			Category: models.TableCategoryMedications,
		})
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, "t2", results[0].ID)
	})
}

func TestSearchMaxResultsCap(t *testing.T) {
	var hits []Hit
	for i := 0; i < 20; i++ {
		hits = append(hits, Hit{ID: string(rune('a' + i)), Score: 0.9})
	}
	vectors := &fakeVectorStore{chunks: hits}
	engine := newTestEngine(&fakeEmbedder{}, vectors, &fakeLexicalStore{})

	results, err := engine.Search(context.Background(), "query terms", "user-1", ModeSemantic, Options{MaxResults: 5})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}
