package keeper

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/dmitrymomot/cookiekeeper/pkg/alert"
	"github.com/dmitrymomot/cookiekeeper/pkg/cookiecodec"
	"github.com/dmitrymomot/cookiekeeper/pkg/credential"
	"github.com/dmitrymomot/cookiekeeper/pkg/logger"
)

// Validator answers whether the current session still authenticates against
// the marketplace token API. A nil return means valid; any error means the
// session should be refreshed.
type Validator interface {
	ValidateToken(ctx context.Context, entries map[string]string, deviceID string) error
}

// Strategy produces a fresh cookie set, or fails without side effects. The
// keeper owns swapping the result in, so a failed strategy never corrupts
// the current record.
type Strategy interface {
	Refresh(ctx context.Context, current *credential.Record) (entries map[string]string, order []string, err error)
}

// Status reports session health as two independent signals so callers can
// distinguish "must refresh now" from "refreshing soon would be wise".
type Status struct {
	HasRecord     bool          `json:"has_record"`
	AuthValid     bool          `json:"auth_valid"`
	Stale         bool          `json:"stale"`
	LastRefreshAt time.Time     `json:"last_refresh_at"`
	Age           time.Duration `json:"age"`
}

// Valid collapses both signals into the refresh decision used by the
// background loop.
func (s Status) Valid() bool {
	return s.AuthValid && !s.Stale
}

// Keeper owns the credential record and its refresh lifecycle.
type Keeper struct {
	config    Config
	store     credential.Store
	validator Validator
	strategy  Strategy
	alerter   alert.Alerter
	fallback  func() (*credential.Record, error)
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	record *credential.Record

	// refreshMu serializes Refresh end to end, covering the strategy's
	// external call: at most one browser context exists at a time.
	refreshMu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a keeper persisting through the given store.
func New(store credential.Store, opts ...Option) *Keeper {
	if store == nil {
		panic("keeper: store is required")
	}

	k := &Keeper{
		config: DefaultConfig(),
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.With(logger.Component("keeper"))
	return k
}

// Load populates the record from the store, falling back to the registered
// environment source. Reports whether a record was obtained. A record loaded
// from the fallback is persisted immediately so the next start finds it in
// the store.
func (k *Keeper) Load(ctx context.Context) bool {
	record, err := k.store.Load(ctx)
	if err == nil {
		k.mu.Lock()
		k.record = record
		k.mu.Unlock()
		k.logger.InfoContext(ctx, "credentials loaded from store",
			slog.Time("last_refresh_at", record.LastRefreshAt))
		return true
	}
	if !errors.Is(err, credential.ErrNotFound) {
		k.logger.WarnContext(ctx, "failed to load credentials from store", logger.Error(err))
	}

	if k.fallback == nil {
		return false
	}

	record, err = k.fallback()
	if err != nil {
		if !errors.Is(err, credential.ErrNoEnvCredentials) {
			k.logger.WarnContext(ctx, "credential fallback failed", logger.Error(err))
		}
		return false
	}
	if record.LastRefreshAt.IsZero() {
		record.LastRefreshAt = k.now()
	}

	k.mu.Lock()
	k.record = record
	if err := k.store.Save(ctx, record); err != nil {
		k.logger.WarnContext(ctx, "failed to persist fallback credentials", logger.Error(err))
	}
	k.mu.Unlock()

	k.logger.InfoContext(ctx, "credentials loaded from fallback")
	return true
}

// SetCredentials replaces the current record. The raw string, when supplied,
// determines serialization order; when entries is nil it is also the source
// of the values. An empty deviceID preserves the previous one. The record is
// persisted before the lock is released; persistence failure is logged and
// the in-memory record stays ahead of disk until the next successful save.
func (k *Keeper) SetCredentials(ctx context.Context, entries map[string]string, raw string, deviceID string) error {
	var order []string
	if raw != "" {
		decoded, decodedOrder, err := cookiecodec.Decode(raw)
		if err != nil {
			return err
		}
		order = decodedOrder
		if entries == nil {
			entries = decoded
		}
	}

	record, err := credential.New(entries, order, deviceID)
	if err != nil {
		return err
	}
	record.LastRefreshAt = k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	if deviceID == "" && k.record != nil {
		record.DeviceID = k.record.DeviceID
	}
	k.record = record
	if err := k.store.Save(ctx, record); err != nil {
		k.logger.WarnContext(ctx, "failed to persist credentials", logger.Error(err))
	}
	return nil
}

// Credentials returns a snapshot of the current cookie set. The returned map
// is a copy; mutating it does not affect the keeper.
func (k *Keeper) Credentials() (entries map[string]string, raw string, deviceID string) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.record == nil {
		return nil, "", ""
	}
	return maps.Clone(k.record.Entries), k.record.Raw, k.record.DeviceID
}

// Record returns a deep copy of the current record, or nil when absent.
func (k *Keeper) Record() *credential.Record {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.record.Clone()
}

// Status probes session health. AuthValid fails closed when no record or no
// validator is configured; Stale compares record age against the expiry
// threshold independently of what the validator says.
func (k *Keeper) Status(ctx context.Context) Status {
	k.mu.RLock()
	record := k.record.Clone()
	k.mu.RUnlock()

	var status Status
	if record == nil {
		k.logger.WarnContext(ctx, "cannot check credentials: no record")
		return status
	}

	status.HasRecord = true
	status.LastRefreshAt = record.LastRefreshAt
	status.Age = record.Age(k.now())
	status.Stale = status.Age > k.config.ExpiryThreshold

	if k.validator == nil {
		k.logger.WarnContext(ctx, "cannot check credentials: no validator configured")
		return status
	}

	if err := k.validator.ValidateToken(ctx, record.Entries, record.DeviceID); err != nil {
		k.logger.WarnContext(ctx, "token check failed", logger.Error(err))
		return status
	}
	status.AuthValid = true

	if status.Stale {
		k.logger.InfoContext(ctx, "credentials near expiry",
			slog.Duration("age", status.Age),
			slog.Duration("threshold", k.config.ExpiryThreshold))
	}
	return status
}

// CheckValid reports whether the session needs no refresh right now.
func (k *Keeper) CheckValid(ctx context.Context) bool {
	return k.Status(ctx).Valid()
}

// Refresh runs the configured strategy and swaps in its result. On any
// failure the existing record is left untouched and false is returned; a
// best-effort alert is dispatched so an operator can intervene when the
// failure needs a manual login.
func (k *Keeper) Refresh(ctx context.Context) bool {
	if k.strategy == nil {
		k.logger.ErrorContext(ctx, "cannot refresh: no strategy configured")
		return false
	}

	k.refreshMu.Lock()
	defer k.refreshMu.Unlock()

	k.mu.RLock()
	current := k.record.Clone()
	k.mu.RUnlock()

	k.logger.InfoContext(ctx, "refreshing credentials")

	entries, order, err := k.strategy.Refresh(ctx, current)
	if err != nil {
		k.logger.ErrorContext(ctx, "credential refresh failed", logger.Error(err))
		k.dispatchAlert(ctx, err)
		return false
	}

	deviceID := ""
	if current != nil {
		deviceID = current.DeviceID
	}
	if id := cookiecodec.DeviceID(entries[k.config.UserIDCookie]); id != "" {
		deviceID = id
	}

	record, err := credential.New(entries, order, deviceID)
	if err != nil {
		k.logger.ErrorContext(ctx, "refresh produced unusable cookie set", logger.Error(err))
		return false
	}
	record.LastRefreshAt = k.now()

	k.mu.Lock()
	k.record = record
	if err := k.store.Save(ctx, record); err != nil {
		k.logger.WarnContext(ctx, "failed to persist refreshed credentials", logger.Error(err))
	}
	k.mu.Unlock()

	k.logger.InfoContext(ctx, "credentials refreshed",
		slog.Int("cookies", len(record.Entries)))
	return true
}

// dispatchAlert notifies the operator channel about a failed refresh.
// Delivery is best effort: a broken alert channel must never affect the
// refresh loop.
func (k *Keeper) dispatchAlert(ctx context.Context, refreshErr error) {
	if k.alerter == nil {
		return
	}

	event := alert.Event{
		Kind:    alert.KindRefreshFailed,
		Message: refreshErr.Error(),
		At:      k.now(),
	}
	if errors.Is(refreshErr, ErrLoginRequired) {
		event.Kind = alert.KindLoginRequired
	}

	if err := k.alerter.Alert(ctx, event); err != nil {
		k.logger.WarnContext(ctx, "failed to deliver refresh alert", logger.Error(err))
	}
}

// StartAutoRefresh launches the background check/refresh loop. Starting an
// already running loop is a no-op with a warning.
func (k *Keeper) StartAutoRefresh() {
	k.loopMu.Lock()
	defer k.loopMu.Unlock()

	if k.cancel != nil {
		k.logger.Warn("auto refresh already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	k.cancel = cancel
	k.done = done

	go k.run(ctx, done)

	k.logger.Info("auto refresh started",
		slog.Duration("check_interval", k.config.CheckInterval),
		slog.Duration("expiry_threshold", k.config.ExpiryThreshold))
}

// StopAutoRefresh signals the loop to exit and waits up to StopTimeout for
// it to do so, then proceeds regardless. Safe to call when not running.
func (k *Keeper) StopAutoRefresh() {
	k.loopMu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	k.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
		k.logger.Info("auto refresh stopped")
	case <-time.After(k.config.StopTimeout):
		k.logger.Warn("auto refresh loop did not exit in time, proceeding")
	}
}

// run is the background loop: check, conditionally refresh, pause, repeat.
func (k *Keeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		pause := k.iterate(ctx)
		if !k.pause(ctx, pause) {
			return
		}
	}
}

// iterate runs one check/refresh cycle and returns the pause before the next
// one. A panic inside a strategy or validator is recovered here so the loop
// survives it, trading the regular interval for the error backoff.
func (k *Keeper) iterate(ctx context.Context) (pause time.Duration) {
	pause = k.config.CheckInterval
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("auto refresh iteration panicked", slog.Any("panic", r))
			pause = k.config.ErrorBackoff
		}
	}()

	if k.CheckValid(ctx) {
		k.logger.DebugContext(ctx, "credentials valid, no refresh needed")
		return pause
	}

	k.logger.InfoContext(ctx, "credentials invalid or stale, refreshing")
	k.Refresh(ctx)
	return pause
}

// pause sleeps for d in small increments so cancellation is honored within
// about a second rather than a full check interval. Reports false once the
// context is done.
func (k *Keeper) pause(ctx context.Context, d time.Duration) bool {
	for remaining := d; remaining > 0; {
		step := time.Second
		if remaining < step {
			step = remaining
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
		remaining -= step
	}
	return ctx.Err() == nil
}
