package domain

import "time"

type Webhook struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	URL       string     `json:"url"`
	Secret    string     `json:"-"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type EventType string

const (
	EventDocumentReady  EventType = "document.ready"
	EventDocumentFailed EventType = "document.failed"
)

// Event is queue-borne and transient; it is logged for audit but is not a
// first-class persisted row.
type Event struct {
	Type       EventType      `json:"type"`
	ProjectID  string         `json:"project_id"`
	DocumentID string         `json:"document_id"`
	Data       map[string]any `json:"data"`
}
