package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Transport delivers a notification to an operator channel. Implementations
// must honor the context deadline; delivery runs outside the dispatcher's
// critical section and must never block it.
type Transport interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogTransport writes notifications to the structured log. Used in
// development and as a safe default when no webhook is configured.
type LogTransport struct{}

// Send logs the notification.
func (LogTransport) Send(ctx context.Context, recipient, subject, body string) error {
	slog.Info("security alert",
		"recipient", recipient,
		"subject", subject,
		"body", body,
	)
	return nil
}

// WebhookTransport posts notifications as JSON to a configured endpoint.
type WebhookTransport struct {
	url    string
	client *http.Client
}

// webhookPayload is the POST body shape.
type webhookPayload struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// NewWebhookTransport creates a webhook transport with a bounded client
// timeout as a backstop to the per-send context deadline.
func NewWebhookTransport(url string, timeout time.Duration) *WebhookTransport {
	return &WebhookTransport{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the notification and treats any non-2xx status as failure.
func (t *WebhookTransport) Send(ctx context.Context, recipient, subject, body string) error {
	payload := webhookPayload{
		ID:        uuid.New().String(),
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		SentAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
