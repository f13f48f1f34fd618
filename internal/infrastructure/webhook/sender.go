package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docpipe/docpipe/internal/core/domain"
)

const SignatureHeader = "X-Signature"

// Sender performs one signed delivery attempt per call. Network errors,
// timeouts and 5xx responses are wrapped as domain.ErrTemporary so the caller
// redelivers the whole event; other non-2xx responses are terminal for this
// attempt.
type Sender struct {
	httpClient *http.Client
}

func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sender{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *Sender) Deliver(ctx context.Context, url, signature string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "webhook delivery", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return domain.WrapError(domain.ErrTemporary, "webhook delivery", fmt.Errorf("endpoint status %s", resp.Status))
	default:
		return fmt.Errorf("webhook delivery: endpoint status %s", resp.Status)
	}
}
