package keeper

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/cookiekeeper/pkg/alert"
	"github.com/dmitrymomot/cookiekeeper/pkg/credential"
)

// Option configures a Keeper.
type Option func(*Keeper)

// WithConfig replaces the default timing policy. Zero fields fall back to
// defaults.
func WithConfig(cfg Config) Option {
	return func(k *Keeper) { k.config = cfg.withDefaults() }
}

// WithValidator sets the token validator. Without one, CheckValid fails
// closed and every loop tick attempts a refresh.
func WithValidator(v Validator) Option {
	return func(k *Keeper) { k.validator = v }
}

// WithStrategy sets the refresh strategy. Without one, Refresh always fails.
func WithStrategy(s Strategy) Option {
	return func(k *Keeper) { k.strategy = s }
}

// WithAlerter routes refresh failures to an operator channel.
func WithAlerter(a alert.Alerter) Option {
	return func(k *Keeper) { k.alerter = a }
}

// WithFallback registers a source consulted by Load when the store is empty,
// typically credential.FromEnv wired to the process environment.
func WithFallback(fn func() (*credential.Record, error)) Option {
	return func(k *Keeper) { k.fallback = fn }
}

// WithLogger supplies an external slog.Logger instance.
func WithLogger(l *slog.Logger) Option {
	return func(k *Keeper) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithTimeSource overrides the wall clock used for staleness decisions and
// refresh timestamps. Intended for tests exercising the expiry policy.
func WithTimeSource(now func() time.Time) Option {
	return func(k *Keeper) {
		if now != nil {
			k.now = now
		}
	}
}
