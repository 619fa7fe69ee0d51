package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zulandar/admitflow/internal/apperr"
	"golang.org/x/time/rate"
)

// Webhook defaults.
const (
	DefaultWebhookTimeout = 5 * time.Second
	DefaultWebhookRate    = 10.0
)

// WebhookClient posts event contexts to external URLs. Every call is
// bounded by the client timeout, and calls across all rules share one
// rate limit.
type WebhookClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookClient creates a WebhookClient. Non-positive values select
// the defaults.
func NewWebhookClient(timeout time.Duration, perSecond float64) *WebhookClient {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	if perSecond <= 0 {
		perSecond = DefaultWebhookRate
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &WebhookClient{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Timeout returns the per-call timeout.
func (w *WebhookClient) Timeout() time.Duration {
	return w.client.Timeout
}

// Post sends payload as JSON. Network failures, timeouts and non-2xx
// responses are returned as external dependency errors.
func (w *WebhookClient) Post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "encode webhook payload", err).WithOp("automation: webhook")
	}

	ctx, cancel := context.WithTimeout(ctx, w.client.Timeout)
	defer cancel()
	if err := w.limiter.Wait(ctx); err != nil {
		return apperr.External("rate limit wait for "+url, err).WithOp("automation: webhook")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "build webhook request", err).WithOp("automation: webhook")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "admitflow-automation")

	resp, err := w.client.Do(req)
	if err != nil {
		return apperr.External("post "+url, err).WithOp("automation: webhook")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.External("post "+url, fmt.Errorf("unexpected status %d", resp.StatusCode)).WithOp("automation: webhook")
	}
	return nil
}
