package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/internal/retrieval"
	"github.com/vitalio/medsearch/pkg/logger"
)

// SearchAdapter bridges the retrieval engine's query interfaces onto the
// concrete stores: Milvus answers nearest-neighbor queries and the
// relational store enriches the hits with text and page metadata, while
// MySQL fulltext answers lexical queries directly. Hits whose relational
// row is missing or whose document is not completed are dropped.
type SearchAdapter struct {
	vectors *VectorStore
	chunks  *ChunkStore
	tables  *TableStore
	log     *logger.Logger
}

// NewSearchAdapter creates a SearchAdapter.
func NewSearchAdapter(vectors *VectorStore, chunks *ChunkStore, tables *TableStore, log *logger.Logger) *SearchAdapter {
	return &SearchAdapter{
		vectors: vectors,
		chunks:  chunks,
		tables:  tables,
		log:     log,
	}
}

// QueryChunks implements retrieval.VectorStore.
func (a *SearchAdapter) QueryChunks(ctx context.Context, vector []float32, userID string, limit int) ([]retrieval.Hit, error) {
	vhits, err := a.vectors.SearchChunks(ctx, vector, userID, limit)
	if err != nil {
		return nil, err
	}
	return a.enrichChunkHits(ctx, vhits)
}

// QueryTables implements retrieval.VectorStore.
func (a *SearchAdapter) QueryTables(ctx context.Context, vector []float32, userID string, category models.TableCategory, limit int) ([]retrieval.Hit, error) {
	vhits, err := a.vectors.SearchTables(ctx, vector, userID, category, limit)
	if err != nil {
		return nil, err
	}
	return a.enrichTableHits(ctx, vhits)
}

// SearchChunks implements retrieval.LexicalStore.
func (a *SearchAdapter) SearchChunks(ctx context.Context, tokens []string, userID string, limit int) ([]retrieval.Hit, error) {
	query := strings.Join(tokens, " ")
	chunks, scores, err := a.chunks.SearchFulltext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]retrieval.Hit, 0, len(chunks))
	for i, c := range chunks {
		hits = append(hits, chunkHit(c, normalizeLexicalScore(scores[i])))
	}
	return hits, nil
}

// SearchTables implements retrieval.LexicalStore.
func (a *SearchAdapter) SearchTables(ctx context.Context, tokens []string, userID string, category models.TableCategory, limit int) ([]retrieval.Hit, error) {
	query := strings.Join(tokens, " ")
	tables, scores, err := a.tables.SearchFulltext(ctx, query, userID, category, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]retrieval.Hit, 0, len(tables))
	for i, t := range tables {
		hits = append(hits, tableHit(t, normalizeLexicalScore(scores[i])))
	}
	return hits, nil
}

// enrichChunkHits joins Milvus hits with their relational rows, keeping the
// vector scores and the Milvus result order.
func (a *SearchAdapter) enrichChunkHits(ctx context.Context, vhits []VectorHit) ([]retrieval.Hit, error) {
	if len(vhits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(vhits))
	for i, h := range vhits {
		ids[i] = h.ID
	}
	rows, err := a.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich chunk hits: %w", err)
	}

	byID := make(map[string]models.DocumentChunk, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	hits := make([]retrieval.Hit, 0, len(vhits))
	for _, vh := range vhits {
		row, ok := byID[vh.ID]
		if !ok {
			// Vector exists but the row is gone or its document is not
			// completed yet; the hit is not servable.
			a.log.WithPayload(map[string]interface{}{"chunk_id": vh.ID}).
				Debug("Dropping vector hit without a servable chunk row")
			continue
		}
		hits = append(hits, chunkHit(row, vh.Score))
	}
	return hits, nil
}

func (a *SearchAdapter) enrichTableHits(ctx context.Context, vhits []VectorHit) ([]retrieval.Hit, error) {
	if len(vhits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(vhits))
	for i, h := range vhits {
		ids[i] = h.ID
	}
	rows, err := a.tables.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich table hits: %w", err)
	}

	byID := make(map[string]models.MedicalTable, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	hits := make([]retrieval.Hit, 0, len(vhits))
	for _, vh := range vhits {
		row, ok := byID[vh.ID]
		if !ok {
			a.log.WithPayload(map[string]interface{}{"table_id": vh.ID}).
				Debug("Dropping vector hit without a servable table row")
			continue
		}
		hits = append(hits, tableHit(row, vh.Score))
	}
	return hits, nil
}

func chunkHit(c models.DocumentChunk, score float64) retrieval.Hit {
	hit := retrieval.Hit{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Text:       c.Text,
		Score:      score,
	}
	if md, err := c.GetMetadata(); err == nil {
		hit.Pages = md.Pages
		hit.IsTable = md.IsTable
	}
	return hit
}

func tableHit(t models.MedicalTable, score float64) retrieval.Hit {
	hit := retrieval.Hit{
		ID:         t.ID,
		DocumentID: t.DocumentID,
		Text:       t.SearchableText,
		Score:      score,
		IsTable:    true,
		Category:   t.Category,
	}
	if t.PageNumber > 0 {
		hit.Pages = []int{t.PageNumber}
	}
	return hit
}

// normalizeLexicalScore squashes MySQL's unbounded fulltext relevance into
// (0, 1] so lexical and semantic scores are comparable before weighting.
func normalizeLexicalScore(relevance float64) float64 {
	if relevance <= 0 {
		return 0
	}
	return relevance / (1 + relevance)
}

var (
	_ retrieval.VectorStore  = (*SearchAdapter)(nil)
	_ retrieval.LexicalStore = (*SearchAdapter)(nil)
)
