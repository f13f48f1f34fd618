package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docpipe/docpipe/internal/core/domain"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *domain.Webhook) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO webhooks (id, project_id, url, secret, revoked_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, webhook.ID, webhook.ProjectID, webhook.URL, webhook.Secret, webhook.RevokedAt, webhook.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Revoke(ctx context.Context, projectID, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE webhooks
SET revoked_at = $3
WHERE id = $1 AND project_id = $2 AND revoked_at IS NULL
`, id, projectID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke webhook: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke webhook rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "revoke webhook", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *WebhookRepository) ListActive(ctx context.Context, projectID string) ([]domain.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, project_id, url, secret, revoked_at, created_at
FROM webhooks
WHERE project_id = $1 AND revoked_at IS NULL
ORDER BY created_at
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("select webhooks: %w", err)
	}
	defer rows.Close()

	var out []domain.Webhook
	for rows.Next() {
		var webhook domain.Webhook
		if err := rows.Scan(
			&webhook.ID, &webhook.ProjectID, &webhook.URL, &webhook.Secret,
			&webhook.RevokedAt, &webhook.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, webhook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}
	return out, nil
}

// EventLogRepository appends dispatched events for audit.
type EventLogRepository struct {
	db *sql.DB
}

func NewEventLogRepository(db *sql.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

func (r *EventLogRepository) Append(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO event_log (event_type, project_id, document_id, payload)
VALUES ($1,$2,$3,$4)
`, string(event.Type), event.ProjectID, event.DocumentID, payload)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
