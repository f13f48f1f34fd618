package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/core/ports"
)

// ProcessUseCase consumes ingestion jobs delivered at least once. All retry
// decisions are explicit Outcome values; the status gate makes redeliveries
// idempotent and enforces single-writer-per-document.
type ProcessUseCase struct {
	docs     ports.DocumentRepository
	chunks   ports.ChunkRepository
	blobs    ports.BlobStore
	parser   ports.Parser
	chunker  ports.Chunker
	embedder ports.Embedder
	vectors  ports.VectorIndex
	events   ports.EventQueue
	logger   *slog.Logger
	retryCap time.Duration
}

func NewProcessUseCase(
	docs ports.DocumentRepository,
	chunks ports.ChunkRepository,
	blobs ports.BlobStore,
	parser ports.Parser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	events ports.EventQueue,
	logger *slog.Logger,
	retryCap time.Duration,
) *ProcessUseCase {
	if retryCap <= 0 {
		retryCap = 120 * time.Second
	}
	return &ProcessUseCase{
		docs:     docs,
		chunks:   chunks,
		blobs:    blobs,
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		events:   events,
		logger:   logger,
		retryCap: retryCap,
	}
}

func (uc *ProcessUseCase) Process(ctx context.Context, job domain.IngestJob, attempt int) domain.Outcome {
	log := uc.logger.With("project_id", job.ProjectID, "document_id", job.DocumentID, "attempt", attempt)

	if job.ProjectID == "" || job.DocumentID == "" {
		log.Error("malformed ingestion job")
		return domain.Fatal("malformed ingestion job payload")
	}

	doc, err := uc.docs.Get(ctx, job.ProjectID, job.DocumentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			log.Warn("document missing, acknowledging", "error", err)
			return domain.Ack()
		}
		log.Warn("load document failed", "error", err)
		return uc.retry(attempt)
	}

	if outcome, proceed := uc.gate(ctx, doc, job, log, attempt); !proceed {
		return outcome
	}

	return uc.attempt(ctx, doc, log, attempt)
}

// gate is the idempotency/single-writer check. Terminal and stale statuses
// acknowledge without writes; UPLOADED and FAILED transition to PROCESSING
// before work starts, and READY does too when the job is an explicit
// re-trigger rather than a stale redelivery. A job seen while PROCESSING is
// the legitimate holder: the queue redelivers only after the visibility
// window, so the prior attempt is presumed dead.
func (uc *ProcessUseCase) gate(ctx context.Context, doc *domain.Document, job domain.IngestJob, log *slog.Logger, attempt int) (domain.Outcome, bool) {
	switch doc.Status {
	case domain.StatusDeleted:
		log.Info("stale redelivery, acknowledging", "status", doc.Status)
		return domain.Ack(), false
	case domain.StatusReady:
		if !job.Reprocess {
			log.Info("stale redelivery, acknowledging", "status", doc.Status)
			return domain.Ack(), false
		}
		return uc.claim(ctx, doc, log, attempt)
	case domain.StatusCreated:
		log.Info("upload not confirmed yet, retrying")
		return uc.retry(attempt), false
	case domain.StatusUploaded, domain.StatusFailed:
		return uc.claim(ctx, doc, log, attempt)
	case domain.StatusProcessing:
		return domain.Outcome{}, true
	default:
		log.Error("unknown document status", "status", doc.Status)
		return domain.Fatal(fmt.Sprintf("unknown document status %q", doc.Status)), false
	}
}

// claim transitions the document to PROCESSING, clearing any previous error.
func (uc *ProcessUseCase) claim(ctx context.Context, doc *domain.Document, log *slog.Logger, attempt int) (domain.Outcome, bool) {
	if err := uc.docs.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		log.Warn("set status=processing failed", "error", err)
		return uc.retry(attempt), false
	}
	return domain.Outcome{}, true
}

func (uc *ProcessUseCase) attempt(ctx context.Context, doc *domain.Document, log *slog.Logger, attempt int) domain.Outcome {
	raw, err := uc.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return uc.fail(ctx, doc, log, fmt.Errorf("source object missing: %s", doc.StorageKey))
		}
		log.Warn("blob fetch failed", "error", err)
		return uc.retry(attempt)
	}

	parsed, err := uc.parser.Parse(ctx, raw, doc.SourceName, doc.ContentType)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return uc.fail(ctx, doc, log, fmt.Errorf("unparseable document: %w", err))
		}
		log.Warn("parse failed", "error", err)
		return uc.retry(attempt)
	}
	if parsed.Text == "" {
		log.Warn("parser returned empty text, retrying")
		return uc.retry(attempt)
	}

	windows := uc.chunker.Split(parsed.Text)
	if len(windows) == 0 {
		return uc.fail(ctx, doc, log, fmt.Errorf("chunking produced zero chunks"))
	}

	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = w.Text
	}

	// All-or-nothing: a failed embedding aborts the whole attempt so a partial
	// chunk set is never persisted.
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		log.Warn("embedding failed", "error", err)
		return uc.retry(attempt)
	}
	if len(vectors) != len(windows) {
		log.Warn("embedding count mismatch", "windows", len(windows), "vectors", len(vectors))
		return uc.retry(attempt)
	}

	rows, points := uc.buildGeneration(doc, parsed, windows, vectors)

	// Clear the previous generation's vectors before upserting the new one.
	// Vector ids change per generation, so stale ids must go first.
	if err := uc.vectors.DeleteByDocument(ctx, doc.ProjectID, doc.ID); err != nil {
		log.Warn("vector cleanup failed", "error", err)
		return uc.retry(attempt)
	}
	if err := uc.vectors.Upsert(ctx, doc.ProjectID, points); err != nil {
		log.Warn("vector upsert failed", "error", err)
		return uc.retry(attempt)
	}

	// Row swap, chunk_count and status=ready commit in one transaction.
	if err := uc.chunks.ReplaceGeneration(ctx, doc.ID, rows); err != nil {
		log.Warn("chunk generation swap failed", "error", err)
		return uc.retry(attempt)
	}

	uc.publish(ctx, log, domain.Event{
		Type:       domain.EventDocumentReady,
		ProjectID:  doc.ProjectID,
		DocumentID: doc.ID,
		Data: map[string]any{
			"document_id": doc.ID,
			"source_name": doc.SourceName,
			"chunk_count": len(rows),
		},
	})

	log.Info("document processed", "chunk_count", len(rows))
	return domain.Ack()
}

func (uc *ProcessUseCase) buildGeneration(
	doc *domain.Document,
	parsed domain.ParsedDocument,
	windows []domain.TextWindow,
	vectors [][]float32,
) ([]domain.Chunk, []ports.VectorPoint) {
	model := uc.embedder.ModelID()
	rows := make([]domain.Chunk, len(windows))
	points := make([]ports.VectorPoint, len(windows))

	for i, w := range windows {
		pageStart, pageEnd := parsed.PageRange(w.Start, w.End)
		rows[i] = domain.Chunk{
			ID:             uuid.NewString(),
			ProjectID:      doc.ProjectID,
			DocumentID:     doc.ID,
			ChunkIndex:     w.Index,
			Content:        w.Text,
			PageStart:      pageStart,
			PageEnd:        pageEnd,
			EmbeddingModel: model,
		}
		points[i] = ports.VectorPoint{
			ID:     rows[i].ID,
			Vector: vectors[i],
			Metadata: ports.VectorMetadata{
				DocumentID:     doc.ID,
				ChunkIndex:     w.Index,
				SourceName:     doc.SourceName,
				ContentHash:    doc.ContentHash,
				EmbeddingModel: model,
			},
		}
	}
	return rows, points
}

// fail marks the document permanently failed, emits document.failed and
// acknowledges. A failed document only becomes processable again via an
// explicit re-trigger.
func (uc *ProcessUseCase) fail(ctx context.Context, doc *domain.Document, log *slog.Logger, cause error) domain.Outcome {
	log.Error("permanent processing failure", "error", cause)

	if err := uc.docs.UpdateStatus(ctx, doc.ID, domain.StatusFailed, cause.Error()); err != nil {
		log.Error("set status=failed failed", "error", err)
	}
	uc.publish(ctx, log, domain.Event{
		Type:       domain.EventDocumentFailed,
		ProjectID:  doc.ProjectID,
		DocumentID: doc.ID,
		Data: map[string]any{
			"document_id": doc.ID,
			"source_name": doc.SourceName,
			"error":       cause.Error(),
		},
	})
	return domain.Ack()
}

// publish is best-effort: a lost event never blocks or retries the job, since
// a redelivered job for a READY document acknowledges without re-emitting.
func (uc *ProcessUseCase) publish(ctx context.Context, log *slog.Logger, event domain.Event) {
	if err := uc.events.PublishEvent(ctx, event); err != nil {
		log.Error("event publish failed", "event_type", event.Type, "error", err)
	}
}

func (uc *ProcessUseCase) retry(attempt int) domain.Outcome {
	return domain.Retry(domain.Backoff(attempt, uc.retryCap))
}
