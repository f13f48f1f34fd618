package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/docpipe/docpipe/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceGeneration swaps the document's entire chunk set and marks the
// document ready in one transaction. Readers see either the old generation or
// the new one, never a mix.
func (r *ChunkRepository) ReplaceGeneration(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin generation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete previous generation: %w", err)
	}

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO chunks (id, project_id, document_id, chunk_index, content, page_start, page_end, embedding_model)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
			chunk.ID, chunk.ProjectID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content,
			chunk.PageStart, chunk.PageEnd, chunk.EmbeddingModel,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
UPDATE documents
SET status = 'ready', error_message = '', chunk_count = $2, updated_at = $3
WHERE id = $1
`, documentID, len(chunks), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document ready: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit generation tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) GetByIDs(ctx context.Context, projectID string, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, projectID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
SELECT id, project_id, document_id, chunk_index, content, page_start, page_end, embedding_model
FROM chunks
WHERE project_id = $1 AND id IN (%s)
`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Chunk, 0, len(ids))
	for rows.Next() {
		var chunk domain.Chunk
		if err := rows.Scan(
			&chunk.ID, &chunk.ProjectID, &chunk.DocumentID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.PageStart, &chunk.PageEnd, &chunk.EmbeddingModel,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
