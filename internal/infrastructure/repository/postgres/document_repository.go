package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docpipe/docpipe/internal/core/domain"
)

const pgUniqueViolation = "23505"

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, project_id, source_name, content_type, content_hash, storage_key, status, error_message, chunk_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		doc.ID, doc.ProjectID, doc.SourceName, doc.ContentType, doc.ContentHash, doc.StorageKey,
		string(doc.Status), doc.Error, doc.ChunkCount, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		// The pre-insert hash check races with concurrent uploads; the partial
		// unique index is the authority.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.WrapError(domain.ErrConflict, "insert document", err)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, projectID, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, project_id, source_name, content_type, content_hash, storage_key, status, error_message, chunk_count, created_at, updated_at
FROM documents
WHERE id = $1 AND project_id = $2
`, id, projectID)

	var doc domain.Document
	var status string

	err := row.Scan(
		&doc.ID, &doc.ProjectID, &doc.SourceName, &doc.ContentType, &doc.ContentHash, &doc.StorageKey,
		&status, &doc.Error, &doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ActiveHashExists(ctx context.Context, projectID, contentHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM documents
	WHERE project_id = $1 AND content_hash = $2 AND status <> 'deleted'
)
`, projectID, contentHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	return exists, nil
}
