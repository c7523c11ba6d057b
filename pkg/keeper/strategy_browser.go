package keeper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/dmitrymomot/cookiekeeper/pkg/credential"
)

// defaultMarkerCookie is the cookie the marketplace sets only for logged-in
// sessions; its presence after navigation is the login signal.
const defaultMarkerCookie = "havana_lgc2_77"

// BrowserStrategy refreshes the session by replaying it through a headless
// Chrome instance: seed the current cookies into an isolated browser
// context, navigate to the target page, and extract the resulting cookie
// jar. When the marker cookie is missing after navigation the session is
// beyond automated recovery and the strategy fails with ErrLoginRequired
// instead of retrying.
type BrowserStrategy struct {
	url          string
	cookieDomain string
	markerCookie string
	headless     bool
	settleDelay  time.Duration
	timeout      time.Duration
}

// BrowserOption configures a BrowserStrategy.
type BrowserOption func(*BrowserStrategy)

// WithMarkerCookie overrides the logged-in marker cookie name.
func WithMarkerCookie(name string) BrowserOption {
	return func(s *BrowserStrategy) {
		if name != "" {
			s.markerCookie = name
		}
	}
}

// WithHeadless toggles headless mode. Running headful is occasionally useful
// to let an operator complete an interactive login through the same profile.
func WithHeadless(headless bool) BrowserOption {
	return func(s *BrowserStrategy) { s.headless = headless }
}

// WithSettleDelay sets how long to wait after page load for late cookie
// writes from scripts. Marketplace pages set session cookies from XHR
// responses well after the document is ready.
func WithSettleDelay(d time.Duration) BrowserOption {
	return func(s *BrowserStrategy) {
		if d > 0 {
			s.settleDelay = d
		}
	}
}

// WithBrowserTimeout bounds the whole replay including browser startup.
func WithBrowserTimeout(d time.Duration) BrowserOption {
	return func(s *BrowserStrategy) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewBrowserStrategy creates a browser replay strategy navigating to
// targetURL. cookieDomain is the domain current cookies are seeded under,
// e.g. ".goofish.com"; empty derives it from the target host.
func NewBrowserStrategy(targetURL, cookieDomain string, opts ...BrowserOption) (*BrowserStrategy, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid target url %q", ErrInvalidConfig, targetURL)
	}
	if cookieDomain == "" {
		cookieDomain = "." + strings.TrimPrefix(parsed.Hostname(), "www.")
	}

	s := &BrowserStrategy{
		url:          targetURL,
		cookieDomain: cookieDomain,
		markerCookie: defaultMarkerCookie,
		headless:     true,
		settleDelay:  5 * time.Second,
		timeout:      90 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Refresh replays the session and extracts the browser's cookie jar.
func (s *BrowserStrategy) Refresh(ctx context.Context, current *credential.Record) (map[string]string, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var cookies []*network.Cookie
	err := chromedp.Run(browserCtx,
		s.seedCookies(current),
		chromedp.Navigate(s.url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.settleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("browser replay: %w", err)
	}

	entries := make(map[string]string, len(cookies))
	order := make([]string, 0, len(cookies))
	loggedIn := false
	for _, c := range cookies {
		if _, seen := entries[c.Name]; !seen {
			order = append(order, c.Name)
		}
		entries[c.Name] = c.Value
		if c.Name == s.markerCookie {
			loggedIn = true
		}
	}

	if !loggedIn {
		return nil, nil, ErrLoginRequired
	}
	return entries, order, nil
}

// seedCookies injects the current cookie set into the fresh browser context
// so the replay starts from the existing session instead of an anonymous one.
func (s *BrowserStrategy) seedCookies(current *credential.Record) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if current == nil {
			return nil
		}
		for name, value := range current.Entries {
			err := network.SetCookie(name, value).
				WithDomain(s.cookieDomain).
				WithPath("/").
				Do(ctx)
			if err != nil {
				return fmt.Errorf("seed cookie %q: %w", name, err)
			}
		}
		return nil
	})
}
