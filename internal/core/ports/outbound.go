package ports

import (
	"context"
	"io"

	"github.com/docpipe/docpipe/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	Get(ctx context.Context, projectID, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	ActiveHashExists(ctx context.Context, projectID, contentHash string) (bool, error)
}

// ChunkRepository persists chunk rows. ReplaceGeneration swaps the whole chunk
// set of a document and marks it ready in one transaction, so readers never
// observe a mixed generation.
type ChunkRepository interface {
	ReplaceGeneration(ctx context.Context, documentID string, chunks []domain.Chunk) error
	GetByIDs(ctx context.Context, projectID string, ids []string) ([]domain.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// WebhookRepository stores webhook registrations. The dispatcher only reads.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *domain.Webhook) error
	Revoke(ctx context.Context, projectID, id string) error
	ListActive(ctx context.Context, projectID string) ([]domain.Webhook, error)
}

// EventLog records dispatched events for audit. Failures here never block
// delivery.
type EventLog interface {
	Append(ctx context.Context, event domain.Event) error
}

// BlobStore stores raw source documents.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
}

// JobQueue carries ingestion jobs with at-least-once delivery. The handler's
// Outcome decides acknowledgement, delayed redelivery, or discard.
type JobQueue interface {
	PublishIngestJob(ctx context.Context, job domain.IngestJob) error
	ConsumeIngestJobs(ctx context.Context, handler func(ctx context.Context, job domain.IngestJob, attempt int) domain.Outcome) error
}

// EventQueue carries completion/failure events downstream of the processor.
type EventQueue interface {
	PublishEvent(ctx context.Context, event domain.Event) error
	ConsumeEvents(ctx context.Context, handler func(ctx context.Context, event domain.Event, attempt int) domain.Outcome) error
}

// Chunker windows normalized text deterministically.
type Chunker interface {
	Split(text string) []domain.TextWindow
}

// Parser turns raw bytes into normalized text.
type Parser interface {
	Parse(ctx context.Context, data []byte, filename, contentType string) (domain.ParsedDocument, error)
}

// Embedder builds fixed-dimension vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

type VectorPoint struct {
	ID       string
	Vector   []float32
	Metadata VectorMetadata
}

type VectorMetadata struct {
	DocumentID     string
	ChunkIndex     int
	SourceName     string
	ContentHash    string
	EmbeddingModel string
}

type VectorFilter struct {
	DocumentID     string
	EmbeddingModel string
}

// VectorIndex is partitioned by namespace (project id); every call is scoped
// to exactly one namespace.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, points []VectorPoint) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter VectorFilter) ([]domain.VectorMatch, error)
	DeleteByDocument(ctx context.Context, namespace, documentID string) error
}

// AnswerGenerator creates the final user-facing answer from supplied context.
type AnswerGenerator interface {
	Generate(ctx context.Context, systemInstruction, contextText, query string) (string, error)
}

// WebhookSender performs one signed delivery attempt. Network errors, timeouts
// and 5xx responses come back wrapped as domain.ErrTemporary; other non-2xx
// responses are terminal for this attempt.
type WebhookSender interface {
	Deliver(ctx context.Context, url, signature string, payload []byte) error
}
