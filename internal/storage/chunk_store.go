package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vitalio/medsearch/internal/models"
)

// ChunkStore is the relational access layer for document chunks. It also
// serves the lexical retrieval primitive through a MySQL FULLTEXT index on
// the chunk text.
type ChunkStore struct {
	db *gorm.DB
}

// NewChunkStore creates a ChunkStore on top of an open gorm handle.
func NewChunkStore(db *gorm.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// EnsureFulltextIndex creates the FULLTEXT index the lexical search relies
// on. MySQL has no CREATE INDEX IF NOT EXISTS for fulltext, so existing
// index errors are swallowed after a catalog check.
func (s *ChunkStore) EnsureFulltextIndex() error {
	if s.db.Migrator().HasIndex(&models.DocumentChunk{}, "idx_chunk_text_fulltext") {
		return nil
	}
	err := s.db.Exec(
		"CREATE FULLTEXT INDEX idx_chunk_text_fulltext ON document_chunks(text)").Error
	if err != nil {
		return fmt.Errorf("failed to create fulltext index on chunks: %w", err)
	}
	return nil
}

// CreateBatch inserts chunk rows in batches.
func (s *ChunkStore) CreateBatch(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(chunks, 100).Error; err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// GetByIDs loads chunks by primary key, restricted to completed documents.
// Chunks of documents still processing (or failed) are invisible to search.
func (s *ChunkStore) GetByIDs(ctx context.Context, ids []string) ([]models.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var chunks []models.DocumentChunk
	err := s.db.WithContext(ctx).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("document_chunks.id IN ? AND documents.status = ?", ids, models.DocumentStatusCompleted).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	return chunks, nil
}

// scoredChunk carries the fulltext relevance alongside the row.
type scoredChunk struct {
	models.DocumentChunk
	Relevance float64 `gorm:"column:relevance"`
}

// SearchFulltext runs a natural-language fulltext match over the user's
// completed documents and returns chunks with their relevance scores.
func (s *ChunkStore) SearchFulltext(ctx context.Context, query, userID string, limit int) ([]models.DocumentChunk, []float64, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []scoredChunk
	err := s.db.WithContext(ctx).
		Model(&models.DocumentChunk{}).
		Select("document_chunks.*, MATCH(document_chunks.text) AGAINST(? IN NATURAL LANGUAGE MODE) AS relevance", query).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.user_id = ? AND documents.status = ?", userID, models.DocumentStatusCompleted).
		Where("MATCH(document_chunks.text) AGAINST(? IN NATURAL LANGUAGE MODE)", query).
		Order("relevance DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fulltext chunk search failed: %w", err)
	}

	chunks := make([]models.DocumentChunk, len(rows))
	scores := make([]float64, len(rows))
	for i, r := range rows {
		chunks[i] = r.DocumentChunk
		scores[i] = r.Relevance
	}
	return chunks, scores, nil
}

// CountByDocument returns the number of chunks stored for a document.
func (s *ChunkStore) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.DocumentChunk{}).
		Where("document_id = ?", documentID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}
