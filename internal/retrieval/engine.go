package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vitalio/medsearch/internal/config"
	"github.com/vitalio/medsearch/internal/embedding"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/pkg/logger"
)

// VectorStore is the nearest-neighbor query primitive the engine consumes.
// Implementations scope results to the user and return only hits from
// completed documents; scores are similarities in [0, 1], higher is better.
type VectorStore interface {
	QueryChunks(ctx context.Context, vector []float32, userID string, limit int) ([]Hit, error)
	QueryTables(ctx context.Context, vector []float32, userID string, category models.TableCategory, limit int) ([]Hit, error)
}

// LexicalStore is the full-text query primitive the engine consumes. A hit
// matches any of the tokens; scores are lexical rank scores.
type LexicalStore interface {
	SearchChunks(ctx context.Context, tokens []string, userID string, limit int) ([]Hit, error)
	SearchTables(ctx context.Context, tokens []string, userID string, category models.TableCategory, limit int) ([]Hit, error)
}

// Options tunes a single search call. Zero values fall back to the
// configured defaults.
type Options struct {
	Threshold  float64
	MaxResults int
	Category   models.TableCategory // tables mode only
}

// Engine serves multi-mode queries blending vector similarity and lexical
// matching into a single ranked result list. It treats chunk and table
// storage as a read-only oracle.
type Engine struct {
	embedder embedding.Embedding
	vectors  VectorStore
	lexical  LexicalStore
	cfg      config.RetrievalConfig
	log      *logger.Logger
}

// NewEngine creates a retrieval Engine.
func NewEngine(embedder embedding.Embedding, vectors VectorStore, lexical LexicalStore, cfg config.RetrievalConfig, log *logger.Logger) *Engine {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.MaxQueryTokens <= 0 {
		cfg.MaxQueryTokens = 10
	}
	if cfg.GoodSemanticWeight <= 0 {
		cfg.GoodSemanticWeight = 0.7
	}
	if cfg.PoorSemanticWeight <= 0 {
		cfg.PoorSemanticWeight = 0.3
	}
	return &Engine{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		cfg:      cfg,
		log:      log,
	}
}

// Search executes a query in the given mode. Unknown modes are rejected
// before any I/O; embedding provider failures in the semantic, hybrid and
// tables modes propagate as errors with no implicit fallback to
// lexical-only retrieval.
func (e *Engine) Search(ctx context.Context, query, userID string, mode Mode, opts Options) ([]Result, error) {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = e.cfg.MaxResults
	}

	switch mode {
	case ModeSemantic:
		return e.searchSemantic(ctx, query, userID, opts.Threshold, limit)
	case ModeLexical:
		return e.searchLexical(ctx, query, userID, limit)
	case ModeHybrid:
		return e.searchHybrid(ctx, query, userID, opts.Threshold, limit)
	case ModeTables:
		return e.searchTables(ctx, query, userID, opts.Category, opts.Threshold, limit)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}
}

func (e *Engine) searchSemantic(ctx context.Context, query, userID string, threshold float64, limit int) ([]Result, error) {
	if threshold <= 0 {
		threshold = e.cfg.SemanticThreshold
	}

	hits, err := e.querySemantic(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}

	results := mergeWeighted(hits, nil, 1, 0)
	return rank(results, threshold, limit), nil
}

func (e *Engine) searchLexical(ctx context.Context, query, userID string, limit int) ([]Result, error) {
	tokens := Tokenize(query, e.cfg.MaxQueryTokens)
	if len(tokens) == 0 {
		return []Result{}, nil
	}

	hits, err := e.lexical.SearchChunks(ctx, tokens, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical query failed: %w", err)
	}

	results := mergeWeighted(nil, hits, 0, 1)
	return rank(results, 0, limit), nil
}

func (e *Engine) searchHybrid(ctx context.Context, query, userID string, threshold float64, limit int) ([]Result, error) {
	if threshold <= 0 {
		threshold = e.cfg.HybridThreshold
	}

	// The sub-queries have no data dependency on each other; the merge is a
	// join point, not a race.
	var semantic, lexical []Hit
	eg, gCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hits, err := e.querySemantic(gCtx, query, userID, limit)
		if err != nil {
			return err
		}
		semantic = hits
		return nil
	})
	eg.Go(func() error {
		tokens := Tokenize(query, e.cfg.MaxQueryTokens)
		if len(tokens) == 0 {
			return nil
		}
		hits, err := e.lexical.SearchChunks(gCtx, tokens, userID, limit)
		if err != nil {
			return fmt.Errorf("lexical query failed: %w", err)
		}
		lexical = hits
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	semanticWeight, lexicalWeight := e.weights(semantic)
	e.log.WithPayload(map[string]interface{}{
		"semantic_hits":   len(semantic),
		"lexical_hits":    len(lexical),
		"semantic_weight": semanticWeight,
	}).Debug("Merging hybrid sub-results")

	results := mergeWeighted(semantic, lexical, semanticWeight, lexicalWeight)
	return rank(results, threshold, limit), nil
}

func (e *Engine) searchTables(ctx context.Context, query, userID string, category models.TableCategory, threshold float64, limit int) ([]Result, error) {
	if threshold <= 0 {
		threshold = e.cfg.HybridThreshold
	}

	vector, _, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var semantic, lexical []Hit
	eg, gCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hits, err := e.vectors.QueryTables(gCtx, vector, userID, category, limit)
		if err != nil {
			return fmt.Errorf("table vector query failed: %w", err)
		}
		semantic = hits
		return nil
	})
	eg.Go(func() error {
		tokens := Tokenize(query, e.cfg.MaxQueryTokens)
		if len(tokens) == 0 {
			return nil
		}
		hits, err := e.lexical.SearchTables(gCtx, tokens, userID, category, limit)
		if err != nil {
			return fmt.Errorf("table lexical query failed: %w", err)
		}
		lexical = hits
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	semanticWeight, lexicalWeight := e.weights(semantic)
	results := mergeWeighted(semantic, lexical, semanticWeight, lexicalWeight)
	return rank(results, threshold, limit), nil
}

// querySemantic embeds the query and runs the scoped nearest-neighbor
// query. Provider errors are hard failures.
func (e *Engine) querySemantic(ctx context.Context, query, userID string, limit int) ([]Hit, error) {
	vector, _, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.vectors.QueryChunks(ctx, vector, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	return hits, nil
}

// weights selects the adaptive weight pair from the semantic sub-results:
// when any semantic hit clears the configured quality threshold the
// semantic side dominates, otherwise the lexical side does. The pair always
// sums to 1.
func (e *Engine) weights(semantic []Hit) (semanticWeight, lexicalWeight float64) {
	good := false
	for _, h := range semantic {
		if h.Score >= e.cfg.QualityThreshold {
			good = true
			break
		}
	}
	if good {
		return e.cfg.GoodSemanticWeight, 1 - e.cfg.GoodSemanticWeight
	}
	return e.cfg.PoorSemanticWeight, 1 - e.cfg.PoorSemanticWeight
}
