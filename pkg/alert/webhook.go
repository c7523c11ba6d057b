package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Webhook delivers events as signed JSON POST requests.
type Webhook struct {
	url        string
	secret     string
	client     *http.Client
	maxRetries uint64
	baseDelay  time.Duration
}

// WebhookOption configures a Webhook alerter.
type WebhookOption func(*Webhook)

// WithSecret enables HMAC-SHA256 payload signing. Receivers verify the
// X-Alert-Signature header against "timestamp.payload".
func WithSecret(secret string) WebhookOption {
	return func(w *Webhook) { w.secret = secret }
}

// WithHTTPClient overrides the default HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) {
		if client != nil {
			w.client = client
		}
	}
}

// WithMaxRetries sets how many times delivery is retried after the first attempt.
func WithMaxRetries(n uint64) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// NewWebhook creates a webhook alerter for the given endpoint.
func NewWebhook(endpoint string, opts ...WebhookOption) (*Webhook, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid webhook url %q", ErrInvalidConfig, endpoint)
	}

	w := &Webhook{
		url:        endpoint,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 2,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Alert posts the event, retrying transient failures with capped exponential
// backoff. Non-2xx responses other than 429 in the 4xx range are treated as
// permanent and not retried.
func (w *Webhook) Alert(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("alert: marshal event: %w", err)
	}

	backoff := retry.WithCappedDuration(10*time.Second,
		retry.WithMaxRetries(w.maxRetries, retry.NewExponential(w.baseDelay)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return w.deliver(ctx, payload)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

func (w *Webhook) deliver(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alert-ID", uuid.New().String())

	if w.secret != "" {
		timestamp := time.Now().Unix()
		req.Header.Set("X-Alert-Timestamp", strconv.FormatInt(timestamp, 10))
		req.Header.Set("X-Alert-Signature", sign(w.secret, timestamp, payload))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		// Transport-level failures are worth retrying.
		return retry.RetryableError(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("webhook endpoint returned %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
}

// sign computes HMAC-SHA256 over "timestamp.payload", binding the signature
// to the timestamp so captured requests cannot be replayed later.
func sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook receiver's copy of the signature. It is
// exported for consumers implementing the receiving side.
func VerifySignature(secret string, timestamp int64, payload []byte, signature string) bool {
	expected := sign(secret, timestamp, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
