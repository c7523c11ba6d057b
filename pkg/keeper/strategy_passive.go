package keeper

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/cookiekeeper/pkg/cookiecodec"
	"github.com/dmitrymomot/cookiekeeper/pkg/credential"
)

// PassiveStrategy refreshes the session without a browser: it re-requests
// the target origin with the current cookies and harvests whatever
// Set-Cookie headers the server reissues. Names not reissued keep their
// current values; reissued names are overwritten. This only works against
// marketplaces that rotate cookies unconditionally; when the server stays
// silent the strategy fails with ErrNoSetCookie and a heavier strategy (or a
// human) has to step in.
type PassiveStrategy struct {
	url        string
	client     *http.Client
	userAgent  string
	maxRetries uint64
	baseDelay  time.Duration
}

// PassiveOption configures a PassiveStrategy.
type PassiveOption func(*PassiveStrategy)

// WithPassiveClient overrides the default HTTP client.
func WithPassiveClient(client *http.Client) PassiveOption {
	return func(s *PassiveStrategy) {
		if client != nil {
			s.client = client
		}
	}
}

// WithPassiveUserAgent overrides the User-Agent header.
func WithPassiveUserAgent(ua string) PassiveOption {
	return func(s *PassiveStrategy) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithPassiveMaxRetries sets how many times transient transport failures are
// retried. A response without Set-Cookie is not transient and never retried.
func WithPassiveMaxRetries(n uint64) PassiveOption {
	return func(s *PassiveStrategy) { s.maxRetries = n }
}

// NewPassiveStrategy creates a passive refresh strategy against targetURL.
func NewPassiveStrategy(targetURL string, opts ...PassiveOption) (*PassiveStrategy, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid refresh url %q", ErrInvalidConfig, targetURL)
	}

	s := &PassiveStrategy{
		url:        targetURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		userAgent:  defaultUserAgent,
		maxRetries: 2,
		baseDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Refresh issues the GET and merges reissued cookies over the current set.
func (s *PassiveStrategy) Refresh(ctx context.Context, current *credential.Record) (map[string]string, []string, error) {
	var headers []string

	backoff := retry.WithCappedDuration(15*time.Second,
		retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.baseDelay)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return err
		}
		if current != nil && current.Raw != "" {
			req.Header.Set("Cookie", current.Raw)
		}
		req.Header.Set("User-Agent", s.userAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("refresh target returned %d", resp.StatusCode))
		}

		headers = resp.Header.Values("Set-Cookie")
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("passive refresh: %w", err)
	}

	fresh, freshOrder := cookiecodec.ParseSetCookie(headers)
	if len(fresh) == 0 {
		return nil, nil, ErrNoSetCookie
	}

	if current == nil {
		return fresh, freshOrder, nil
	}

	merged := maps.Clone(current.Entries)
	order := slices.Clone(current.Order)
	for _, name := range freshOrder {
		if _, exists := merged[name]; !exists {
			order = append(order, name)
		}
		merged[name] = fresh[name]
	}
	return merged, order, nil
}
