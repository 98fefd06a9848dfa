package storage

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/vitalio/medsearch/internal/database/milvus"
	"github.com/vitalio/medsearch/internal/models"
	"github.com/vitalio/medsearch/pkg/logger"
)

// VectorHit is one scored nearest-neighbor match from the vector store.
// Only identity and score come back from Milvus; row payloads are loaded
// from the relational store by the search adapter.
type VectorHit struct {
	ID         string
	DocumentID string
	Score      float64
	Category   models.TableCategory // table collection only
}

// VectorStore wraps the two Milvus collections (chunk and table vectors)
// behind insert, search and delete operations scoped by user.
type VectorStore struct {
	client *milvus.Client
	log    *logger.Logger
}

// NewVectorStore creates a VectorStore on top of a connected Milvus client.
func NewVectorStore(c *milvus.Client, log *logger.Logger) *VectorStore {
	return &VectorStore{client: c, log: log}
}

// InsertChunks writes chunk embeddings into the chunk collection. The
// slices are parallel and must be the same length.
func (s *VectorStore) InsertChunks(ctx context.Context, ids, documentIDs, userIDs []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(documentIDs) != len(ids) || len(userIDs) != len(ids) || len(vectors) != len(ids) {
		return fmt.Errorf("column length mismatch: %d ids, %d documents, %d users, %d vectors",
			len(ids), len(documentIDs), len(userIDs), len(vectors))
	}

	cols := []entity.Column{
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnVarChar(milvus.FieldDocumentID, documentIDs),
		entity.NewColumnVarChar(milvus.FieldUserID, userIDs),
		entity.NewColumnFloatVector(milvus.FieldEmbedding, s.client.Config.Dimension, vectors),
	}
	_, err := s.client.Client.Insert(ctx, s.client.Config.ChunkCollection, "", cols...)
	if err != nil {
		return fmt.Errorf("failed to insert chunk vectors: %w", err)
	}
	return nil
}

// InsertTables writes table embeddings into the table collection.
func (s *VectorStore) InsertTables(ctx context.Context, ids, documentIDs, userIDs []string, categories []models.TableCategory, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(documentIDs) != len(ids) || len(userIDs) != len(ids) ||
		len(categories) != len(ids) || len(vectors) != len(ids) {
		return fmt.Errorf("column length mismatch: %d ids, %d documents, %d users, %d categories, %d vectors",
			len(ids), len(documentIDs), len(userIDs), len(categories), len(vectors))
	}

	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = string(c)
	}

	cols := []entity.Column{
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnVarChar(milvus.FieldDocumentID, documentIDs),
		entity.NewColumnVarChar(milvus.FieldUserID, userIDs),
		entity.NewColumnFloatVector(milvus.FieldEmbedding, s.client.Config.Dimension, vectors),
		entity.NewColumnVarChar(milvus.FieldCategory, cats),
	}
	_, err := s.client.Client.Insert(ctx, s.client.Config.TableCollection, "", cols...)
	if err != nil {
		return fmt.Errorf("failed to insert table vectors: %w", err)
	}
	return nil
}

// SearchChunks runs a nearest-neighbor query over the user's chunk vectors.
func (s *VectorStore) SearchChunks(ctx context.Context, vector []float32, userID string, limit int) ([]VectorHit, error) {
	expr := fmt.Sprintf(`%s == "%s"`, milvus.FieldUserID, userID)
	return s.search(ctx, s.client.Config.ChunkCollection, vector, expr, limit, false)
}

// SearchTables runs a nearest-neighbor query over the user's table vectors,
// optionally narrowed to one category.
func (s *VectorStore) SearchTables(ctx context.Context, vector []float32, userID string, category models.TableCategory, limit int) ([]VectorHit, error) {
	expr := fmt.Sprintf(`%s == "%s"`, milvus.FieldUserID, userID)
	if category != "" {
		expr = fmt.Sprintf(`%s and %s == "%s"`, expr, milvus.FieldCategory, category)
	}
	return s.search(ctx, s.client.Config.TableCollection, vector, expr, limit, true)
}

func (s *VectorStore) search(ctx context.Context, collection string, vector []float32, expr string, limit int, withCategory bool) ([]VectorHit, error) {
	if limit <= 0 {
		limit = 10
	}

	searchParams, err := entity.NewIndexIvfFlatSearchParam(10)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}
	outputFields := []string{milvus.FieldID, milvus.FieldDocumentID}
	if withCategory {
		outputFields = append(outputFields, milvus.FieldCategory)
	}

	results, err := s.client.Client.Search(
		ctx, collection, []string{}, expr, outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		milvus.FieldEmbedding, entity.COSINE, limit, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %q: %w", collection, err)
	}

	var hits []VectorHit
	for _, res := range results {
		idCol, ok := findColumn(res.Fields, milvus.FieldID).(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("Search result is missing the id field, skipping result set")
			continue
		}
		ids := idCol.Data()

		var docIDs, cats []string
		if col, ok := findColumn(res.Fields, milvus.FieldDocumentID).(*entity.ColumnVarChar); ok {
			docIDs = col.Data()
		}
		if col, ok := findColumn(res.Fields, milvus.FieldCategory).(*entity.ColumnVarChar); ok {
			cats = col.Data()
		}

		for i := 0; i < res.ResultCount; i++ {
			hit := VectorHit{
				ID:    ids[i],
				Score: clampScore(float64(res.Scores[i])),
			}
			if docIDs != nil {
				hit.DocumentID = docIDs[i]
			}
			if cats != nil {
				hit.Category = models.TableCategory(cats[i])
			}
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

// DeleteByDocument removes all chunk and table vectors of a document.
func (s *VectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf(`%s == "%s"`, milvus.FieldDocumentID, documentID)
	if err := s.client.Client.Delete(ctx, s.client.Config.ChunkCollection, "", expr); err != nil {
		return fmt.Errorf("failed to delete chunk vectors: %w", err)
	}
	if err := s.client.Client.Delete(ctx, s.client.Config.TableCollection, "", expr); err != nil {
		return fmt.Errorf("failed to delete table vectors: %w", err)
	}
	return nil
}

func findColumn(fields []entity.Column, name string) entity.Column {
	for _, f := range fields {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// clampScore maps a cosine similarity into [0, 1]. Negative similarities
// carry no retrieval value and collapse to zero.
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
