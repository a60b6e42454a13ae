package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient disables the SSRF guard so calls can reach httptest servers.
func newTestClient() *Client {
	return NewClient(zerolog.Nop()).WithHostValidator(func(string) error { return nil })
}

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestClient_Call_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SPC_F=abc", r.Header.Get("Cookie"))
		w.Header().Add("Set-Cookie", "SPC_F=new1; Path=/")
		w.Header().Add("Set-Cookie", "SPC_U=new2; Path=/")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error":0,"data":{"ok":true}}`))
	}))
	defer srv.Close()

	c := newTestClient()
	res, err := c.Call(context.Background(), Request{
		Method: http.MethodGet,
		URL:    srv.URL,
		Cookie: "SPC_F=abc",
	}, Options{Family: "platform", DetectCookieExpiry: true})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, res.SetCookies(), 2)
	assert.Contains(t, string(res.Body), `"ok":true`)
}

func TestClient_Call_SSRFBlocked(t *testing.T) {
	c := NewClient(zerolog.Nop()) // real validator

	_, err := c.Call(context.Background(), Request{
		Method: http.MethodGet,
		URL:    "http://169.254.169.254/latest/meta-data/",
	}, Options{Family: "platform"})

	require.Error(t, err)
	assert.Equal(t, "UP_004", appErrCode(t, err))
}

func TestClient_Call_SSRFBlockedProxy(t *testing.T) {
	c := NewClient(zerolog.Nop())

	_, err := c.Call(context.Background(), Request{
		Method: http.MethodGet,
		URL:    "http://1.1.1.1/",
	}, Options{
		Family: "platform",
		Proxy:  &domain.ProxyEntry{ID: uuid.New(), Address: "192.168.1.50:8080"},
	})

	require.Error(t, err)
	assert.Equal(t, "UP_004", appErrCode(t, err))
}

func TestClient_Call_CookieExpiredByStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := newTestClient()
		_, err := c.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL},
			Options{Family: "platform", DetectCookieExpiry: true})

		require.Error(t, err, "status %d", status)
		assert.Equal(t, "UP_002", appErrCode(t, err))
		srv.Close()
	}
}

func TestClient_Call_CookieExpiredByErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":19,"error_msg":"not logged in"}`))
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL},
		Options{Family: "platform", DetectCookieExpiry: true})

	require.Error(t, err)
	assert.Equal(t, "UP_002", appErrCode(t, err))
}

func TestClient_Call_NoExpiryDetectionWithoutFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":19}`))
	}))
	defer srv.Close()

	c := newTestClient()
	res, err := c.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL},
		Options{Family: "viotp"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestClient_Call_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Call(context.Background(), Request{Method: http.MethodGet, URL: srv.URL},
		Options{Family: "viotp"})

	require.Error(t, err)
	assert.Equal(t, "UP_001", appErrCode(t, err))
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient()
	req := Request{Method: http.MethodGet, URL: srv.URL}
	opts := Options{Family: "flaky"}

	for i := 0; i < 5; i++ {
		_, err := c.Call(context.Background(), req, opts)
		require.Error(t, err)
	}

	// Breaker now open: fails fast without hitting the server.
	_, err := c.Call(context.Background(), req, opts)
	require.Error(t, err)
	assert.Equal(t, "UP_001", appErrCode(t, err))
}

func TestClient_BreakerIgnoresCookieExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient()
	req := Request{Method: http.MethodGet, URL: srv.URL}
	opts := Options{Family: "platform-sem", DetectCookieExpiry: true}

	// Far more than the trip threshold; all are semantic outcomes.
	for i := 0; i < 10; i++ {
		_, err := c.Call(context.Background(), req, opts)
		assert.Equal(t, "UP_002", appErrCode(t, err))
	}
}

// fakeProxySource cycles through a fixed list.
type fakeProxySource struct {
	entries []domain.ProxyEntry
	idx     int32
	used    []uuid.UUID
	down    []uuid.UUID
}

func (f *fakeProxySource) Next() *domain.ProxyEntry {
	if len(f.entries) == 0 {
		return nil
	}
	i := int(atomic.AddInt32(&f.idx, 1)-1) % len(f.entries)
	e := f.entries[i]
	return &e
}
func (f *fakeProxySource) MarkUsed(id uuid.UUID) { f.used = append(f.used, id) }
func (f *fakeProxySource) MarkDown(id uuid.UUID) { f.down = append(f.down, id) }

func TestClient_CallWithFailover_FirstAttemptDirect(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"error":0}`))
	}))
	defer srv.Close()

	c := newTestClient()
	src := &fakeProxySource{entries: []domain.ProxyEntry{{ID: uuid.New(), Address: "203.0.113.1:80"}}}

	res, err := c.CallWithFailover(context.Background(),
		Request{Method: http.MethodGet, URL: srv.URL},
		Options{Family: "fo1"}, src, 3)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, src.used, "direct success must not touch the pool")
}

func TestClient_CallWithFailover_CookieExpiredNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient()
	src := &fakeProxySource{entries: []domain.ProxyEntry{{ID: uuid.New(), Address: "203.0.113.1:80"}}}

	_, err := c.CallWithFailover(context.Background(),
		Request{Method: http.MethodGet, URL: srv.URL},
		Options{Family: "fo2", DetectCookieExpiry: true}, src, 3)

	require.Error(t, err)
	assert.Equal(t, "UP_002", appErrCode(t, err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "semantic error must stop the failover loop")
}
