package ports

import (
	"context"
	"io"

	"github.com/docpipe/docpipe/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document lifecycle operations
// owned by the API side (uploaded/deleted transitions and the explicit
// reprocess re-trigger).
type DocumentIngestor interface {
	Upload(ctx context.Context, projectID, sourceName, contentType string, body io.Reader) (*domain.Document, error)
	Delete(ctx context.Context, projectID, id string) error
	Reprocess(ctx context.Context, projectID, id string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	Get(ctx context.Context, projectID, id string) (*domain.Document, error)
}

// DocumentProcessor consumes one ingestion job delivery. attempt is the
// 1-based delivery count reported by the queue.
type DocumentProcessor interface {
	Process(ctx context.Context, job domain.IngestJob, attempt int) domain.Outcome
}

// EventDispatcher consumes one event delivery and fans it out to registered
// webhooks. The event, not an individual webhook, is the unit of retry.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event domain.Event, attempt int) domain.Outcome
}

// QueryService answers natural-language queries over a project's chunks.
type QueryService interface {
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}

// WebhookService manages webhook registrations.
type WebhookService interface {
	Register(ctx context.Context, projectID, url string) (*domain.Webhook, error)
	Revoke(ctx context.Context, projectID, id string) error
}
