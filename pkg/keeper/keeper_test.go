package keeper_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cookiekeeper/pkg/alert"
	"github.com/dmitrymomot/cookiekeeper/pkg/cookiecodec"
	"github.com/dmitrymomot/cookiekeeper/pkg/credential"
	"github.com/dmitrymomot/cookiekeeper/pkg/keeper"
)

// memStore is an in-memory credential.Store with injectable failures.
type memStore struct {
	mu      sync.Mutex
	record  *credential.Record
	loadErr error
	saveErr error
	saves   int
}

func (s *memStore) Load(context.Context) (*credential.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.record == nil {
		return nil, credential.ErrNotFound
	}
	return s.record.Clone(), nil
}

func (s *memStore) Save(_ context.Context, record *credential.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.record = record.Clone()
	return nil
}

func (s *memStore) saved() *credential.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

type validatorFunc func(ctx context.Context, entries map[string]string, deviceID string) error

func (f validatorFunc) ValidateToken(ctx context.Context, entries map[string]string, deviceID string) error {
	return f(ctx, entries, deviceID)
}

type strategyFunc func(ctx context.Context, current *credential.Record) (map[string]string, []string, error)

func (f strategyFunc) Refresh(ctx context.Context, current *credential.Record) (map[string]string, []string, error) {
	return f(ctx, current)
}

// captureAlerter records delivered events.
type captureAlerter struct {
	mu     sync.Mutex
	events []alert.Event
}

func (a *captureAlerter) Alert(_ context.Context, event alert.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *captureAlerter) all() []alert.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]alert.Event(nil), a.events...)
}

func mustRecord(t *testing.T, raw, userIDCookie string) *credential.Record {
	t.Helper()
	record, err := credential.FromRaw(raw, userIDCookie)
	require.NoError(t, err)
	return record
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("panics on nil store", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { keeper.New(nil) })
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("from store", func(t *testing.T) {
		t.Parallel()

		store := &memStore{record: mustRecord(t, "unb=user1; t=abc", "unb")}
		k := keeper.New(store)

		require.True(t, k.Load(context.Background()))

		entries, raw, deviceID := k.Credentials()
		assert.Equal(t, map[string]string{"unb": "user1", "t": "abc"}, entries)
		assert.Equal(t, "unb=user1; t=abc", raw)
		assert.Equal(t, cookiecodec.DeviceID("user1"), deviceID)
	})

	t.Run("fallback used and persisted", func(t *testing.T) {
		t.Parallel()

		store := &memStore{}
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		k := keeper.New(store,
			keeper.WithTimeSource(func() time.Time { return now }),
			keeper.WithFallback(func() (*credential.Record, error) {
				return credential.FromRaw("unb=user1; sid=xyz", "unb")
			}),
		)

		require.True(t, k.Load(context.Background()))

		saved := store.saved()
		require.NotNil(t, saved)
		assert.Equal(t, "unb=user1; sid=xyz", saved.Raw)
		assert.Equal(t, now, saved.LastRefreshAt, "fallback record gets a refresh timestamp")
	})

	t.Run("no store record and no fallback", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})
		assert.False(t, k.Load(context.Background()))

		entries, raw, deviceID := k.Credentials()
		assert.Nil(t, entries)
		assert.Empty(t, raw)
		assert.Empty(t, deviceID)
	})

	t.Run("fallback failure reported as no record", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{}, keeper.WithFallback(func() (*credential.Record, error) {
			return nil, credential.ErrNoEnvCredentials
		}))
		assert.False(t, k.Load(context.Background()))
	})
}

func TestSetCredentials(t *testing.T) {
	t.Parallel()

	t.Run("raw string is decoded", func(t *testing.T) {
		t.Parallel()

		store := &memStore{}
		k := keeper.New(store)

		require.NoError(t, k.SetCredentials(context.Background(), nil, "a=1; b=2", "dev-1"))

		entries, raw, deviceID := k.Credentials()
		assert.Equal(t, map[string]string{"a": "1", "b": "2"}, entries)
		assert.Equal(t, "a=1; b=2", raw)
		assert.Equal(t, "dev-1", deviceID)
	})

	t.Run("explicit entries win over raw values", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})

		entries := map[string]string{"a": "override", "b": "2"}
		require.NoError(t, k.SetCredentials(context.Background(), entries, "a=1; b=2", "dev-1"))

		got, raw, _ := k.Credentials()
		assert.Equal(t, "override", got["a"])
		assert.Equal(t, "a=override; b=2", raw, "raw regenerated in original order")
	})

	t.Run("empty device id preserves previous", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})
		require.NoError(t, k.SetCredentials(context.Background(), nil, "a=1", "dev-1"))
		require.NoError(t, k.SetCredentials(context.Background(), nil, "a=2", ""))

		_, _, deviceID := k.Credentials()
		assert.Equal(t, "dev-1", deviceID)
	})

	t.Run("malformed raw rejected", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})
		err := k.SetCredentials(context.Background(), nil, "no-equals-sign", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, cookiecodec.ErrMalformedCookie)
	})

	t.Run("empty set rejected", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})
		err := k.SetCredentials(context.Background(), nil, "", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, credential.ErrEmptyRecord)
	})

	t.Run("persists to store", func(t *testing.T) {
		t.Parallel()

		store := &memStore{}
		k := keeper.New(store)
		require.NoError(t, k.SetCredentials(context.Background(), nil, "a=1", "dev-1"))

		saved := store.saved()
		require.NotNil(t, saved)
		assert.Equal(t, "a=1", saved.Raw)
	})

	t.Run("persist failure keeps in-memory record", func(t *testing.T) {
		t.Parallel()

		store := &memStore{saveErr: errors.New("disk full")}
		k := keeper.New(store)
		require.NoError(t, k.SetCredentials(context.Background(), nil, "a=1", "dev-1"))

		_, raw, _ := k.Credentials()
		assert.Equal(t, "a=1", raw)
	})

	t.Run("concurrent writers keep raw and entries in sync", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				raw := fmt.Sprintf("unb=user%d; t=tok%d", i, i)
				assert.NoError(t, k.SetCredentials(context.Background(), nil, raw, ""))
			}()
		}
		wg.Wait()

		record := k.Record()
		require.NotNil(t, record)
		assert.Equal(t, cookiecodec.Encode(record.Entries, record.Order), record.Raw,
			"raw must be the canonical serialization of entries, whichever writer won")

		entries, raw, _ := k.Credentials()
		assert.Equal(t, cookiecodec.Encode(entries, record.Order), raw)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})
		require.NoError(t, k.SetCredentials(context.Background(), nil, "a=1", ""))

		entries, _, _ := k.Credentials()
		entries["a"] = "mutated"

		fresh, _, _ := k.Credentials()
		assert.Equal(t, "1", fresh["a"])
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newKeeper := func(t *testing.T, age time.Duration, validator keeper.Validator) *keeper.Keeper {
		t.Helper()
		record := mustRecord(t, "unb=user1; t=abc", "unb")
		record.LastRefreshAt = base.Add(-age)

		opts := []keeper.Option{
			keeper.WithTimeSource(func() time.Time { return base }),
		}
		if validator != nil {
			opts = append(opts, keeper.WithValidator(validator))
		}
		k := keeper.New(&memStore{record: record}, opts...)
		require.True(t, k.Load(context.Background()))
		return k
	}

	okValidator := validatorFunc(func(context.Context, map[string]string, string) error { return nil })

	t.Run("no record fails closed", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{}, keeper.WithValidator(okValidator))
		status := k.Status(context.Background())
		assert.False(t, status.HasRecord)
		assert.False(t, status.Valid())
	})

	t.Run("no validator fails closed", func(t *testing.T) {
		t.Parallel()

		k := newKeeper(t, time.Hour, nil)
		status := k.Status(context.Background())
		assert.True(t, status.HasRecord)
		assert.False(t, status.AuthValid)
		assert.False(t, status.Valid())
	})

	t.Run("fresh and accepted", func(t *testing.T) {
		t.Parallel()

		k := newKeeper(t, time.Hour, okValidator)
		status := k.Status(context.Background())
		assert.True(t, status.AuthValid)
		assert.False(t, status.Stale)
		assert.True(t, status.Valid())
		assert.Equal(t, time.Hour, status.Age)
	})

	t.Run("accepted but past expiry threshold", func(t *testing.T) {
		t.Parallel()

		k := newKeeper(t, 3*time.Hour+30*time.Minute, okValidator)
		status := k.Status(context.Background())
		assert.True(t, status.AuthValid, "token API still accepts the session")
		assert.True(t, status.Stale, "but age exceeds the proactive threshold")
		assert.False(t, status.Valid())
		assert.False(t, k.CheckValid(context.Background()))
	})

	t.Run("rejected by token api", func(t *testing.T) {
		t.Parallel()

		rejecting := validatorFunc(func(context.Context, map[string]string, string) error {
			return keeper.ErrTokenInvalid
		})
		k := newKeeper(t, time.Hour, rejecting)
		status := k.Status(context.Background())
		assert.True(t, status.HasRecord)
		assert.False(t, status.AuthValid)
		assert.False(t, status.Valid())
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("success swaps record and persists", func(t *testing.T) {
		t.Parallel()

		store := &memStore{record: mustRecord(t, "unb=user1; t=old", "unb")}
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		k := keeper.New(store,
			keeper.WithTimeSource(func() time.Time { return now }),
			keeper.WithStrategy(strategyFunc(func(_ context.Context, current *credential.Record) (map[string]string, []string, error) {
				require.NotNil(t, current)
				return map[string]string{"unb": "user1", "t": "new"}, []string{"unb", "t"}, nil
			})),
		)
		require.True(t, k.Load(context.Background()))

		require.True(t, k.Refresh(context.Background()))

		entries, raw, deviceID := k.Credentials()
		assert.Equal(t, "new", entries["t"])
		assert.Equal(t, "unb=user1; t=new", raw)
		assert.Equal(t, cookiecodec.DeviceID("user1"), deviceID)

		record := k.Record()
		require.NotNil(t, record)
		assert.Equal(t, now, record.LastRefreshAt)

		saved := store.saved()
		require.NotNil(t, saved)
		assert.Equal(t, "unb=user1; t=new", saved.Raw)
	})

	t.Run("failure leaves record untouched", func(t *testing.T) {
		t.Parallel()

		store := &memStore{record: mustRecord(t, "unb=user1; t=old", "unb")}
		k := keeper.New(store,
			keeper.WithStrategy(strategyFunc(func(context.Context, *credential.Record) (map[string]string, []string, error) {
				return nil, nil, errors.New("target unreachable")
			})),
		)
		require.True(t, k.Load(context.Background()))
		before := k.Record()

		assert.False(t, k.Refresh(context.Background()))

		after := k.Record()
		assert.Equal(t, before.Raw, after.Raw)
		assert.Equal(t, before.LastRefreshAt, after.LastRefreshAt)
	})

	t.Run("no strategy fails", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})
		assert.False(t, k.Refresh(context.Background()))
	})

	t.Run("failure dispatches alert", func(t *testing.T) {
		t.Parallel()

		alerter := &captureAlerter{}
		k := keeper.New(&memStore{},
			keeper.WithAlerter(alerter),
			keeper.WithStrategy(strategyFunc(func(context.Context, *credential.Record) (map[string]string, []string, error) {
				return nil, nil, errors.New("boom")
			})),
		)

		k.Refresh(context.Background())

		events := alerter.all()
		require.Len(t, events, 1)
		assert.Equal(t, alert.KindRefreshFailed, events[0].Kind)
		assert.Contains(t, events[0].Message, "boom")
	})

	t.Run("login required maps to dedicated alert kind", func(t *testing.T) {
		t.Parallel()

		alerter := &captureAlerter{}
		k := keeper.New(&memStore{},
			keeper.WithAlerter(alerter),
			keeper.WithStrategy(strategyFunc(func(context.Context, *credential.Record) (map[string]string, []string, error) {
				return nil, nil, keeper.ErrLoginRequired
			})),
		)

		k.Refresh(context.Background())

		events := alerter.all()
		require.Len(t, events, 1)
		assert.Equal(t, alert.KindLoginRequired, events[0].Kind)
	})

	t.Run("device id re-derived from user cookie", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{},
			keeper.WithStrategy(strategyFunc(func(context.Context, *credential.Record) (map[string]string, []string, error) {
				return map[string]string{"unb": "user2", "t": "abc"}, []string{"unb", "t"}, nil
			})),
		)

		require.True(t, k.Refresh(context.Background()))

		_, _, deviceID := k.Credentials()
		assert.Equal(t, cookiecodec.DeviceID("user2"), deviceID)
	})
}

func TestAutoRefresh(t *testing.T) {
	t.Parallel()

	t.Run("refreshes when session invalid", func(t *testing.T) {
		t.Parallel()

		var refreshes atomic.Int32
		store := &memStore{record: mustRecord(t, "unb=user1; t=old", "unb")}
		k := keeper.New(store,
			keeper.WithConfig(keeper.Config{
				CheckInterval: 10 * time.Millisecond,
				ErrorBackoff:  10 * time.Millisecond,
			}),
			keeper.WithValidator(validatorFunc(func(context.Context, map[string]string, string) error {
				return keeper.ErrTokenInvalid
			})),
			keeper.WithStrategy(strategyFunc(func(context.Context, *credential.Record) (map[string]string, []string, error) {
				refreshes.Add(1)
				return map[string]string{"unb": "user1", "t": "new"}, []string{"unb", "t"}, nil
			})),
		)
		require.True(t, k.Load(context.Background()))

		k.StartAutoRefresh()
		defer k.StopAutoRefresh()

		require.Eventually(t, func() bool {
			return refreshes.Load() >= 1
		}, 2*time.Second, 10*time.Millisecond, "loop never attempted a refresh")
	})

	t.Run("idles when session valid", func(t *testing.T) {
		t.Parallel()

		var refreshes atomic.Int32
		record := mustRecord(t, "unb=user1; t=abc", "unb")
		record.LastRefreshAt = time.Now()
		store := &memStore{record: record}
		k := keeper.New(store,
			keeper.WithConfig(keeper.Config{CheckInterval: 10 * time.Millisecond}),
			keeper.WithValidator(validatorFunc(func(context.Context, map[string]string, string) error { return nil })),
			keeper.WithStrategy(strategyFunc(func(context.Context, *credential.Record) (map[string]string, []string, error) {
				refreshes.Add(1)
				return nil, nil, errors.New("should not run")
			})),
		)
		require.True(t, k.Load(context.Background()))

		k.StartAutoRefresh()
		time.Sleep(100 * time.Millisecond)
		k.StopAutoRefresh()

		assert.Zero(t, refreshes.Load())
	})

	t.Run("loop survives a panicking strategy", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		k := keeper.New(&memStore{},
			keeper.WithConfig(keeper.Config{
				CheckInterval: 10 * time.Millisecond,
				ErrorBackoff:  10 * time.Millisecond,
			}),
			keeper.WithStrategy(strategyFunc(func(context.Context, *credential.Record) (map[string]string, []string, error) {
				attempts.Add(1)
				panic("browser crashed")
			})),
		)

		k.StartAutoRefresh()
		defer k.StopAutoRefresh()

		require.Eventually(t, func() bool {
			return attempts.Load() >= 2
		}, 2*time.Second, 10*time.Millisecond, "loop died after the first panic")
	})

	t.Run("stop without start is a no-op", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{})
		assert.NotPanics(t, k.StopAutoRefresh)
	})

	t.Run("double start is a no-op", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{},
			keeper.WithConfig(keeper.Config{CheckInterval: 10 * time.Millisecond}),
		)
		k.StartAutoRefresh()
		assert.NotPanics(t, k.StartAutoRefresh)
		k.StopAutoRefresh()
	})

	t.Run("stop returns promptly", func(t *testing.T) {
		t.Parallel()

		k := keeper.New(&memStore{},
			keeper.WithConfig(keeper.Config{
				CheckInterval: time.Hour,
				StopTimeout:   2 * time.Second,
			}),
		)
		k.StartAutoRefresh()

		start := time.Now()
		k.StopAutoRefresh()
		assert.Less(t, time.Since(start), 2*time.Second, "cancellation should interrupt the pause within about a second")
	})
}
