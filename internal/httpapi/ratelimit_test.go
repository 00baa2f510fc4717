package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/stockroom/internal/memory"
	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/internal/store"
)

func TestRateLimitPerClient(t *testing.T) {
	b := memory.NewBackend()
	s := store.New(schema.NewRegistry(b), b)
	h := NewServer(s, nil, WithRateLimit(0.001, 2)).Handler()

	get := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1001").Code)
	rec := get("10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), codeRateLimited)

	assert.Equal(t, http.StatusOK, get("10.0.0.2:1000").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	srv := NewServer(nil, nil, WithRateLimit(0, 5))
	assert.Nil(t, srv.limiter)
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.Len(t, l.clients, 1)

	now = now.Add(2 * clientTTL)
	assert.True(t, l.allow("b"))
	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "b")
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientAddr(req))
	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientAddr(req))
}
