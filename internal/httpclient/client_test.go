package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New("astrofed-test/1.0", "")
	require.NoError(t, err)
	c.BaseDelay = time.Millisecond
	c.MaxDelay = 5 * time.Millisecond

	resp, err := c.Perform(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, MaxRetries: 5, VerifyTLS: true, Redirects: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPerformDoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := New("astrofed-test/1.0", "")
	require.NoError(t, err)

	resp, err := c.Perform(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, MaxRetries: 3, VerifyTLS: true, Redirects: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPerformHonoursRetryAfter(t *testing.T) {
	var calls int32
	var firstAt, secondAt time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			firstAt = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondAt = time.Now()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New("astrofed-test/1.0", "")
	require.NoError(t, err)

	resp, err := c.Perform(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, MaxRetries: 1, VerifyTLS: true, Redirects: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.GreaterOrEqual(t, secondAt.Sub(firstAt), 900*time.Millisecond)
}
