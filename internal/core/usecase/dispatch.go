package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docpipe/docpipe/internal/core/domain"
	"github.com/docpipe/docpipe/internal/core/ports"
	"github.com/docpipe/docpipe/internal/infrastructure/hashing"
)

const deliveryConcurrency = 8

// DispatchUseCase fans one event out to every non-revoked webhook of the
// project. The event is the unit of retry: if any endpoint fails transiently
// the whole event is redelivered, so receivers must be idempotent on
// (document_id, type).
type DispatchUseCase struct {
	webhooks      ports.WebhookRepository
	sender        ports.WebhookSender
	eventLog      ports.EventLog
	logger        *slog.Logger
	retryCap      time.Duration
	maxDeliveries int
}

func NewDispatchUseCase(
	webhooks ports.WebhookRepository,
	sender ports.WebhookSender,
	eventLog ports.EventLog,
	logger *slog.Logger,
	retryCap time.Duration,
	maxDeliveries int,
) *DispatchUseCase {
	if retryCap <= 0 {
		retryCap = 600 * time.Second
	}
	if maxDeliveries <= 0 {
		maxDeliveries = 10
	}
	return &DispatchUseCase{
		webhooks:      webhooks,
		sender:        sender,
		eventLog:      eventLog,
		logger:        logger,
		retryCap:      retryCap,
		maxDeliveries: maxDeliveries,
	}
}

func (uc *DispatchUseCase) Dispatch(ctx context.Context, event domain.Event, attempt int) domain.Outcome {
	log := uc.logger.With(
		"event_type", event.Type,
		"project_id", event.ProjectID,
		"document_id", event.DocumentID,
		"attempt", attempt,
	)

	if event.ProjectID == "" || (event.Type != domain.EventDocumentReady && event.Type != domain.EventDocumentFailed) {
		log.Error("malformed event")
		return domain.Fatal("malformed event payload")
	}

	// Audit record on first delivery only; never blocks dispatch.
	if attempt <= 1 {
		if err := uc.eventLog.Append(ctx, event); err != nil {
			log.Warn("event audit append failed", "error", err)
		}
	}

	hooks, err := uc.webhooks.ListActive(ctx, event.ProjectID)
	if err != nil {
		log.Warn("list webhooks failed", "error", err)
		return domain.Retry(domain.Backoff(attempt, uc.retryCap))
	}
	if len(hooks) == 0 {
		return domain.Ack()
	}

	payload, err := json.Marshal(map[string]any{
		"type":       event.Type,
		"data":       event.Data,
		"project_id": event.ProjectID,
	})
	if err != nil {
		log.Error("marshal event payload failed", "error", err)
		return domain.Fatal("unencodable event payload")
	}

	// Every webhook gets exactly one attempt in this delivery, concurrently.
	results := make([]error, len(hooks))
	group := new(errgroup.Group)
	group.SetLimit(deliveryConcurrency)
	for i, hook := range hooks {
		group.Go(func() error {
			signature := "sha256=" + hashing.SignPayload(hook.Secret, payload)
			results[i] = uc.sender.Deliver(ctx, hook.URL, signature, payload)
			return nil
		})
	}
	_ = group.Wait()

	transient := false
	for i, deliverErr := range results {
		switch {
		case deliverErr == nil:
		case domain.IsKind(deliverErr, domain.ErrTemporary):
			log.Warn("webhook delivery failed, will redeliver event", "webhook_id", hooks[i].ID, "error", deliverErr)
			transient = true
		default:
			// Non-5xx rejection is terminal for this webhook on this attempt.
			log.Warn("webhook rejected delivery", "webhook_id", hooks[i].ID, "error", deliverErr)
		}
	}

	if transient {
		if attempt >= uc.maxDeliveries {
			log.Error("webhook delivery attempts exhausted, dead-lettering event")
			return domain.Fatal("delivery attempts exhausted")
		}
		return domain.Retry(domain.Backoff(attempt, uc.retryCap))
	}
	return domain.Ack()
}
