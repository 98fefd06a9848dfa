package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vitalio/medsearch/internal/models"
)

// TableStore is the relational access layer for classified medical tables.
// Lexical table search runs over the denormalized searchable_text column.
type TableStore struct {
	db *gorm.DB
}

// NewTableStore creates a TableStore on top of an open gorm handle.
func NewTableStore(db *gorm.DB) *TableStore {
	return &TableStore{db: db}
}

// EnsureFulltextIndex creates the FULLTEXT index over searchable_text.
func (s *TableStore) EnsureFulltextIndex() error {
	if s.db.Migrator().HasIndex(&models.MedicalTable{}, "idx_table_text_fulltext") {
		return nil
	}
	err := s.db.Exec(
		"CREATE FULLTEXT INDEX idx_table_text_fulltext ON medical_tables(searchable_text)").Error
	if err != nil {
		return fmt.Errorf("failed to create fulltext index on tables: %w", err)
	}
	return nil
}

// CreateBatch inserts table rows in batches.
func (s *TableStore) CreateBatch(ctx context.Context, tables []models.MedicalTable) error {
	if len(tables) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(tables, 50).Error; err != nil {
		return fmt.Errorf("failed to insert tables: %w", err)
	}
	return nil
}

// GetByIDs loads tables by primary key, restricted to completed documents.
func (s *TableStore) GetByIDs(ctx context.Context, ids []string) ([]models.MedicalTable, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tables []models.MedicalTable
	err := s.db.WithContext(ctx).
		Joins("JOIN documents ON documents.id = medical_tables.document_id").
		Where("medical_tables.id IN ? AND documents.status = ?", ids, models.DocumentStatusCompleted).
		Find(&tables).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}
	return tables, nil
}

// scoredTable carries the fulltext relevance alongside the row.
type scoredTable struct {
	models.MedicalTable
	Relevance float64 `gorm:"column:relevance"`
}

// SearchFulltext runs a natural-language fulltext match over the user's
// tables, optionally filtered to one category. An empty category matches
// all categories.
func (s *TableStore) SearchFulltext(ctx context.Context, query, userID string, category models.TableCategory, limit int) ([]models.MedicalTable, []float64, error) {
	if limit <= 0 {
		limit = 10
	}

	q := s.db.WithContext(ctx).
		Model(&models.MedicalTable{}).
		Select("medical_tables.*, MATCH(medical_tables.searchable_text) AGAINST(? IN NATURAL LANGUAGE MODE) AS relevance", query).
		Joins("JOIN documents ON documents.id = medical_tables.document_id").
		Where("documents.user_id = ? AND documents.status = ?", userID, models.DocumentStatusCompleted).
		Where("MATCH(medical_tables.searchable_text) AGAINST(? IN NATURAL LANGUAGE MODE)", query)
	if category != "" {
		q = q.Where("medical_tables.category = ?", category)
	}

	var rows []scoredTable
	err := q.Order("relevance DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fulltext table search failed: %w", err)
	}

	tables := make([]models.MedicalTable, len(rows))
	scores := make([]float64, len(rows))
	for i, r := range rows {
		tables[i] = r.MedicalTable
		scores[i] = r.Relevance
	}
	return tables, scores, nil
}

// ListByDocument returns all tables of a document ordered by table index.
func (s *TableStore) ListByDocument(ctx context.Context, documentID string) ([]models.MedicalTable, error) {
	var tables []models.MedicalTable
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("table_index ASC").
		Find(&tables).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}
