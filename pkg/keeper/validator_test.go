package keeper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cookiekeeper/pkg/keeper"
)

func TestNewAPIValidator(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid endpoint", func(t *testing.T) {
		t.Parallel()

		for _, endpoint := range []string{"", "not-a-url", "://missing-scheme"} {
			_, err := keeper.NewAPIValidator(endpoint)
			require.Error(t, err, "endpoint %q", endpoint)
			assert.ErrorIs(t, err, keeper.ErrInvalidConfig)
		}
	})

	t.Run("accepts valid endpoint", func(t *testing.T) {
		t.Parallel()

		v, err := keeper.NewAPIValidator("https://h5api.m.goofish.com/h5/token")
		require.NoError(t, err)
		assert.NotNil(t, v)
	})
}

func TestAPIValidator_ValidateToken(t *testing.T) {
	t.Parallel()

	entries := map[string]string{"unb": "user1", "t": "abc"}

	t.Run("success response", func(t *testing.T) {
		t.Parallel()

		var gotCookie, gotDeviceID string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotDeviceID = r.URL.Query().Get("deviceId")
			w.Write([]byte(`{"ret":["SUCCESS::调用成功"],"data":{}}`))
		}))
		defer srv.Close()

		v, err := keeper.NewAPIValidator(srv.URL)
		require.NoError(t, err)

		require.NoError(t, v.ValidateToken(context.Background(), entries, "dev-123"))
		assert.Contains(t, gotCookie, "unb=user1")
		assert.Contains(t, gotCookie, "t=abc")
		assert.Equal(t, "dev-123", gotDeviceID)
	})

	t.Run("device id appended to existing query", func(t *testing.T) {
		t.Parallel()

		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"ret":["SUCCESS::ok"]}`))
		}))
		defer srv.Close()

		v, err := keeper.NewAPIValidator(srv.URL + "/token?appKey=12574478")
		require.NoError(t, err)

		require.NoError(t, v.ValidateToken(context.Background(), entries, "dev-123"))
		assert.Contains(t, gotQuery, "appKey=12574478")
		assert.Contains(t, gotQuery, "deviceId=dev-123")
	})

	t.Run("session expired response", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ret":["FAIL_SYS_SESSION_EXPIRED::Session过期"]}`))
		}))
		defer srv.Close()

		v, err := keeper.NewAPIValidator(srv.URL)
		require.NoError(t, err)

		err = v.ValidateToken(context.Background(), entries, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, keeper.ErrTokenInvalid)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		v, err := keeper.NewAPIValidator(srv.URL)
		require.NoError(t, err)

		err = v.ValidateToken(context.Background(), entries, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, keeper.ErrTokenInvalid)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>gateway error</html>`))
		}))
		defer srv.Close()

		v, err := keeper.NewAPIValidator(srv.URL)
		require.NoError(t, err)

		err = v.ValidateToken(context.Background(), entries, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, keeper.ErrTokenInvalid)
	})

	t.Run("empty ret field", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ret":[]}`))
		}))
		defer srv.Close()

		v, err := keeper.NewAPIValidator(srv.URL)
		require.NoError(t, err)

		err = v.ValidateToken(context.Background(), entries, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, keeper.ErrTokenInvalid)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		v, err := keeper.NewAPIValidator(srv.URL)
		require.NoError(t, err)

		err = v.ValidateToken(context.Background(), entries, "")
		require.Error(t, err)
	})

	t.Run("custom user agent", func(t *testing.T) {
		t.Parallel()

		var gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Write([]byte(`{"ret":["SUCCESS::ok"]}`))
		}))
		defer srv.Close()

		v, err := keeper.NewAPIValidator(srv.URL, keeper.WithValidatorUserAgent("custom-agent/1.0"))
		require.NoError(t, err)

		require.NoError(t, v.ValidateToken(context.Background(), entries, ""))
		assert.Equal(t, "custom-agent/1.0", gotUA)
	})
}
