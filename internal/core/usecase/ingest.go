package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/core/ports"
	"github.com/docpipe/docpipe/internal/infrastructure/hashing"
)

// IngestUseCase owns the API-side document lifecycle: uploaded and deleted
// transitions plus the explicit reprocess re-trigger. The processor owns
// everything between.
type IngestUseCase struct {
	docs    ports.DocumentRepository
	chunks  ports.ChunkRepository
	blobs   ports.BlobStore
	vectors ports.VectorIndex
	jobs    ports.JobQueue
	logger  *slog.Logger
}

func NewIngestUseCase(
	docs ports.DocumentRepository,
	chunks ports.ChunkRepository,
	blobs ports.BlobStore,
	vectors ports.VectorIndex,
	jobs ports.JobQueue,
	logger *slog.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		docs:    docs,
		chunks:  chunks,
		blobs:   blobs,
		vectors: vectors,
		jobs:    jobs,
		logger:  logger,
	}
}

func (uc *IngestUseCase) Upload(
	ctx context.Context,
	projectID, sourceName, contentType string,
	body io.Reader,
) (*domain.Document, error) {
	if projectID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("missing project id"))
	}
	if sourceName == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("missing source name"))
	}

	contentHash, raw, err := hashing.HashReader(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty upload body"))
	}

	exists, err := uc.docs.ActiveHashExists(ctx, projectID, contentHash)
	if err != nil {
		return nil, fmt.Errorf("check content hash: %w", err)
	}
	if exists {
		return nil, domain.WrapError(domain.ErrConflict, "upload", fmt.Errorf("duplicate content hash %s", contentHash))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", projectID, id, sanitizeFilename(sourceName))
	now := time.Now().UTC()

	if err := uc.blobs.Put(ctx, storageKey, strings.NewReader(string(raw)), contentType); err != nil {
		return nil, fmt.Errorf("save to blob store: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		ProjectID:   projectID,
		SourceName:  sourceName,
		ContentType: contentType,
		ContentHash: contentHash,
		StorageKey:  storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document row: %w", err)
	}

	if err := uc.jobs.PublishIngestJob(ctx, domain.IngestJob{ProjectID: projectID, DocumentID: id}); err != nil {
		return nil, fmt.Errorf("publish ingestion job: %w", err)
	}
	return doc, nil
}

func (uc *IngestUseCase) Delete(ctx context.Context, projectID, id string) error {
	doc, err := uc.docs.Get(ctx, projectID, id)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.Status == domain.StatusDeleted {
		return nil
	}

	if err := uc.docs.UpdateStatus(ctx, doc.ID, domain.StatusDeleted, ""); err != nil {
		return fmt.Errorf("set status=deleted: %w", err)
	}
	if err := uc.vectors.DeleteByDocument(ctx, projectID, doc.ID); err != nil {
		uc.logger.Warn("vector cleanup on delete failed", "document_id", doc.ID, "error", err)
	}
	if err := uc.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		uc.logger.Warn("chunk cleanup on delete failed", "document_id", doc.ID, "error", err)
	}
	if err := uc.blobs.Delete(ctx, doc.StorageKey); err != nil {
		uc.logger.Warn("blob cleanup on delete failed", "document_id", doc.ID, "error", err)
	}
	return nil
}

// Reprocess is the only path back into processing for a FAILED or READY
// document. The job carries the re-trigger mark so the processor gate can
// tell it apart from a stale redelivery.
func (uc *IngestUseCase) Reprocess(ctx context.Context, projectID, id string) error {
	doc, err := uc.docs.Get(ctx, projectID, id)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.Status != domain.StatusFailed && doc.Status != domain.StatusReady {
		return domain.WrapError(domain.ErrConflict, "reprocess",
			fmt.Errorf("document status %q is not reprocessable", doc.Status))
	}
	if err := uc.jobs.PublishIngestJob(ctx, domain.IngestJob{ProjectID: projectID, DocumentID: id, Reprocess: true}); err != nil {
		return fmt.Errorf("publish ingestion job: %w", err)
	}
	return nil
}

func (uc *IngestUseCase) Get(ctx context.Context, projectID, id string) (*domain.Document, error) {
	return uc.docs.Get(ctx, projectID, id)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
