package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/cookiekeeper/pkg/cookiecodec"
)

// defaultUserAgent mimics a desktop browser; the marketplace rejects
// obviously non-browser clients.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// tokenResponse is the marketplace token API envelope. Only the first ret
// element matters: a "SUCCESS::..." prefix means the session authenticates.
type tokenResponse struct {
	Ret []string `json:"ret"`
}

// APIValidator checks session validity against the marketplace token
// endpoint using the current cookie set and device id.
type APIValidator struct {
	endpoint  string
	client    *http.Client
	userAgent string
}

// APIValidatorOption configures an APIValidator.
type APIValidatorOption func(*APIValidator)

// WithValidatorClient overrides the default HTTP client.
func WithValidatorClient(client *http.Client) APIValidatorOption {
	return func(v *APIValidator) {
		if client != nil {
			v.client = client
		}
	}
}

// WithValidatorUserAgent overrides the User-Agent header.
func WithValidatorUserAgent(ua string) APIValidatorOption {
	return func(v *APIValidator) {
		if ua != "" {
			v.userAgent = ua
		}
	}
}

// NewAPIValidator creates a validator for the given token endpoint.
func NewAPIValidator(endpoint string, opts ...APIValidatorOption) (*APIValidator, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid token endpoint %q", ErrInvalidConfig, endpoint)
	}

	v := &APIValidator{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: 15 * time.Second},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidateToken calls the token endpoint with the session cookies. Any
// transport error, non-2xx status, malformed envelope or non-SUCCESS ret
// code is reported as invalid.
func (v *APIValidator) ValidateToken(ctx context.Context, entries map[string]string, deviceID string) error {
	endpoint := v.endpoint
	if deviceID != "" {
		separator := "?"
		if strings.Contains(endpoint, "?") {
			separator = "&"
		}
		endpoint += separator + "deviceId=" + url.QueryEscape(deviceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cookie", cookiecodec.Encode(entries, nil))
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("token check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: token endpoint returned %d", ErrTokenInvalid, resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: malformed token response: %w", ErrTokenInvalid, err)
	}
	if len(body.Ret) == 0 {
		return fmt.Errorf("%w: empty ret field", ErrTokenInvalid)
	}
	if !strings.HasPrefix(body.Ret[0], "SUCCESS") {
		return fmt.Errorf("%w: %s", ErrTokenInvalid, body.Ret[0])
	}
	return nil
}
