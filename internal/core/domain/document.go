package domain

import "time"

type DocumentStatus string

const (
	StatusCreated    DocumentStatus = "created"
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
	StatusDeleted    DocumentStatus = "deleted"
)

type Document struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	SourceName  string         `json:"source_name"`
	ContentType string         `json:"content_type"`
	ContentHash string         `json:"content_hash"`
	StorageKey  string         `json:"storage_key"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	ChunkCount  int            `json:"chunk_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Chunk is one window of a document's normalized text. The full set for a
// document is replaced as a unit on every processing attempt.
type Chunk struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	DocumentID     string `json:"document_id"`
	ChunkIndex     int    `json:"chunk_index"`
	Content        string `json:"content"`
	PageStart      *int   `json:"page_start,omitempty"`
	PageEnd        *int   `json:"page_end,omitempty"`
	EmbeddingModel string `json:"embedding_model"`
}

// IngestJob triggers one processing pass. Reprocess marks an explicit
// re-trigger, which is the only way a READY document re-enters the pipeline.
type IngestJob struct {
	ProjectID  string `json:"project_id"`
	DocumentID string `json:"document_id"`
	Reprocess  bool   `json:"reprocess,omitempty"`
}
