package models

import "time"

// DocumentStatus is the lifecycle state of an uploaded document.
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents an uploaded file and its extracted content.
// ContentHash is the SHA-256 digest of the full extracted text and is the
// key used for duplicate-upload detection among the user's non-failed
// documents. The hash is written only after extraction, so rows still
// processing may carry an empty hash; the index is therefore non-unique
// and duplicate detection goes through the guarded lookup.
type Document struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	UserID      string         `gorm:"index:idx_user_hash;not null;size:255" json:"user_id"`
	Filename    string         `gorm:"not null;size:512" json:"filename"`
	FileSize    int64          `json:"file_size"`
	ContentHash string         `gorm:"index:idx_user_hash;size:64" json:"content_hash"`
	ObjectKey   string         `gorm:"size:512" json:"object_key"` // key of the raw file in object storage
	Status      DocumentStatus `gorm:"index;not null;size:32" json:"status"`
	PageCount   int            `json:"page_count"`
	ChunkCount  int            `json:"chunk_count"`
	TableCount  int            `json:"table_count"`
	Error       string         `gorm:"size:1024" json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Chunks []DocumentChunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
	Tables []MedicalTable  `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}
