package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/core/ports"
)

type WebhookUseCase struct {
	webhooks ports.WebhookRepository
}

func NewWebhookUseCase(webhooks ports.WebhookRepository) *WebhookUseCase {
	return &WebhookUseCase{webhooks: webhooks}
}

func (uc *WebhookUseCase) Register(ctx context.Context, projectID, rawURL string) (*domain.Webhook, error) {
	if projectID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "register webhook", errors.New("missing project id"))
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "register webhook", fmt.Errorf("invalid url %q", rawURL))
	}

	secret, err := newSecret()
	if err != nil {
		return nil, fmt.Errorf("generate webhook secret: %w", err)
	}

	webhook := &domain.Webhook{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		URL:       rawURL,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.webhooks.Create(ctx, webhook); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return webhook, nil
}

func (uc *WebhookUseCase) Revoke(ctx context.Context, projectID, id string) error {
	if err := uc.webhooks.Revoke(ctx, projectID, id); err != nil {
		return fmt.Errorf("revoke webhook: %w", err)
	}
	return nil
}

func newSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(raw), nil
}
