package models

import "time"

// ProcessingStatus is one stage of the document ingestion pipeline.
type ProcessingStatus string

const (
	ProcessingStatusQueued        ProcessingStatus = "queued"
	ProcessingStatusExtracting    ProcessingStatus = "extracting_text"
	ProcessingStatusChunking      ProcessingStatus = "chunking"
	ProcessingStatusEmbedding     ProcessingStatus = "generating_embeddings"
	ProcessingStatusStoringChunks ProcessingStatus = "storing_chunks"
	ProcessingStatusCompleted     ProcessingStatus = "completed"
	ProcessingStatusFailed        ProcessingStatus = "failed"
)

// Terminal reports whether no further transitions are accepted from s.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed
}

// ProcessingUpdate is the event delivered to the progress notification sink.
// Delivery is fire-and-forget; there is no acknowledgment contract.
type ProcessingUpdate struct {
	DocumentID string                 `json:"document_id"`
	UserID     string                 `json:"user_id"`
	Status     ProcessingStatus       `json:"status"`
	Progress   int                    `json:"progress"` // 0..100
	Message    string                 `json:"message,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// ProcessingRecord is the persisted audit row for an ingestion job.
type ProcessingRecord struct {
	DocumentID  string           `bson:"_id" json:"document_id"`
	UserID      string           `bson:"user_id" json:"user_id"`
	Status      ProcessingStatus `bson:"status" json:"status"`
	Progress    int              `bson:"progress" json:"progress"`
	Message     string           `bson:"message,omitempty" json:"message,omitempty"`
	SubmittedAt time.Time        `bson:"submitted_at" json:"submitted_at"`
	CompletedAt time.Time        `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
