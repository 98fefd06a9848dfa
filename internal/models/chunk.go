package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ChunkMetadata is the free-form metadata blob persisted alongside a chunk.
// PageNumber on the row is only the primary (first) page and is lossy for
// chunks spanning several pages, so the full page list lives here.
type ChunkMetadata struct {
	Pages   []int `json:"pages"`
	IsTable bool  `json:"is_table"`
}

// DocumentChunk is one retrieval unit of a document's extracted text.
// ChunkIndex is contiguous and monotonically increasing per document.
// A chunk is immutable after creation except for late embedding attachment
// and is removed only when its document is deleted.
type DocumentChunk struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	DocumentID string         `gorm:"index;not null;size:36" json:"document_id"`
	ChunkIndex int            `gorm:"not null" json:"chunk_index"`
	Text       string         `gorm:"type:text;not null" json:"text"`
	WordCount  int            `json:"word_count"`
	CharCount  int            `json:"char_count"`
	PageNumber int            `json:"page_number"` // primary page; 0 when no page map was supplied
	Metadata   datatypes.JSON `json:"metadata"`
	Embedded   bool           `gorm:"index" json:"embedded"` // vector present in the vector store
	CreatedAt  time.Time      `json:"created_at"`
}

// SetMetadata serializes the metadata blob onto the row.
func (c *DocumentChunk) SetMetadata(md ChunkMetadata) error {
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	c.Metadata = datatypes.JSON(raw)
	return nil
}

// GetMetadata deserializes the metadata blob. A missing blob yields the
// zero value, not an error, so consumers treat page data as unavailable.
func (c *DocumentChunk) GetMetadata() (ChunkMetadata, error) {
	var md ChunkMetadata
	if len(c.Metadata) == 0 {
		return md, nil
	}
	err := json.Unmarshal(c.Metadata, &md)
	return md, err
}
