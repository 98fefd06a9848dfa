package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vitalio/medsearch/internal/models"
)

// ErrDocumentNotFound is returned when a document ID does not exist or does
// not belong to the requesting user.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore is the relational access layer for documents.
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore creates a DocumentStore on top of an open gorm handle.
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Migrate creates or updates the document, chunk and table schemas.
func (s *DocumentStore) Migrate() error {
	return s.db.AutoMigrate(&models.Document{}, &models.DocumentChunk{}, &models.MedicalTable{})
}

// Create inserts a new document row.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document scoped to its owner.
func (s *DocumentStore) GetByID(ctx context.Context, id, userID string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return &doc, nil
}

// FindByContentHash looks up a non-failed document with the same extracted
// content for the user. Failed documents do not count as duplicates so a
// failed upload can be retried.
func (s *DocumentStore) FindByContentHash(ctx context.Context, userID, contentHash string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND content_hash = ? AND status <> ?",
			userID, contentHash, models.DocumentStatusFailed).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document by hash: %w", err)
	}
	return &doc, nil
}

// FindByNameAndSize looks up a non-failed document with the same filename
// and byte size for the user. This is the cheap pre-extraction duplicate
// signal; content-hash comparison is the authoritative one.
func (s *DocumentStore) FindByNameAndSize(ctx context.Context, userID, filename string, size int64) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND filename = ? AND file_size = ? AND status <> ?",
			userID, filename, size, models.DocumentStatusFailed).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document by name: %w", err)
	}
	return &doc, nil
}

// List returns the user's documents, newest first.
func (s *DocumentStore) List(ctx context.Context, userID string, page, limit int) ([]models.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var total int64
	q := s.db.WithContext(ctx).Model(&models.Document{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	var docs []models.Document
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, total, nil
}

// Update persists the given column changes on a document row.
func (s *DocumentStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// MarkCompleted finalizes a successfully ingested document.
func (s *DocumentStore) MarkCompleted(ctx context.Context, id string, pageCount, chunkCount, tableCount int) error {
	return s.Update(ctx, id, map[string]interface{}{
		"status":      models.DocumentStatusCompleted,
		"page_count":  pageCount,
		"chunk_count": chunkCount,
		"table_count": tableCount,
		"error":       "",
	})
}

// MarkFailed records a terminal ingestion failure with its reason.
func (s *DocumentStore) MarkFailed(ctx context.Context, id, reason string) error {
	if len(reason) > 1024 {
		reason = reason[:1024]
	}
	return s.Update(ctx, id, map[string]interface{}{
		"status": models.DocumentStatusFailed,
		"error":  reason,
	})
}

// Delete removes a document and, through the cascade constraints, all of
// its chunks and tables. It returns the deleted row so the caller can clean
// up the vector and object stores.
func (s *DocumentStore) Delete(ctx context.Context, id, userID string) (*models.Document, error) {
	doc, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Explicit child deletes keep the behavior correct even when the
		// cascade constraint was not applied by an older migration.
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&models.MedicalTable{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Document{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete document: %w", err)
	}
	return doc, nil
}
