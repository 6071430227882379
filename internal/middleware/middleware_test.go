package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/book-market-backend/internal/reqctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier map[string]string

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if uid, ok := s[idToken]; ok {
		return &auth.Token{UID: uid}, nil
	}
	return nil, errors.New("bad token")
}

// echoUID writes the uid seen by the handler, from both the echo and request contexts.
func echoUID(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	return c.String(http.StatusOK, uid+"|"+reqctx.UID(c.Request().Context()))
}

func run(mw echo.MiddlewareFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = mw(echoUID)(c)
	return rec
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddlewareWithVerifier(stubVerifier{"good": "alice"}, zap.NewNop())

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "valid token", header: "Bearer good", status: http.StatusOK, body: "alice|alice"},
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := run(m.RequireAuth, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
	assert.Nil(t, m.Client())
}

func TestDevAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DebugUIDHeader, " bob ")
	rec := run(DevAuth, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob|bob", rec.Body.String())

	rec = run(DevAuth, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	var seen string
	h := RequestID(func(c echo.Context) error {
		seen = reqctx.RID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) Allow(_ context.Context, q Quota, uid string) (Decision, error) {
	if l.err != nil {
		return Decision{}, l.err
	}
	l.counts[q.Scope+":"+uid]++
	return decide(q, int64(l.counts[q.Scope+":"+uid]), 41500*time.Millisecond), nil
}

var negotiationQuota = Quota{Scope: "negotiation", Limit: 2, Window: time.Minute}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int{}}
	mw := RateLimit(limiter, negotiationQuota, zap.NewNop())
	e := echo.New()

	call := func(uid string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		c.Set("uid", uid)
		_ = mw(echoUID)(c)
		return rec
	}

	rec := call("alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, call("alice").Code)
	rec = call("alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, call("bob").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	e := echo.New()
	for name, limiter := range map[string]RateLimiter{
		"nil limiter":   nil,
		"redis failure": &countingLimiter{err: errors.New("connection refused")},
	} {
		t.Run(name, func(t *testing.T) {
			mw := RateLimit(limiter, Quota{Scope: "negotiation", Limit: 1, Window: time.Minute}, zap.NewNop())
			for i := 0; i < 3; i++ {
				rec := httptest.NewRecorder()
				c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
				c.Set("uid", "alice")
				require.NoError(t, mw(echoUID)(c))
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	q := Quota{Scope: "negotiation", Limit: 3, Window: time.Minute}
	tests := []struct {
		name  string
		count int64
		ttl   time.Duration
		want  Decision
	}{
		{name: "first call", count: 1, ttl: time.Minute, want: Decision{Allowed: true, Remaining: 2}},
		{name: "last allowed call", count: 3, ttl: time.Second, want: Decision{Allowed: true, Remaining: 0}},
		{name: "over quota", count: 4, ttl: 12 * time.Second, want: Decision{RetryAfter: 12 * time.Second}},
		{name: "counter without ttl", count: 9, ttl: -time.Millisecond, want: Decision{RetryAfter: time.Minute}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(q, tt.count, tt.ttl))
		})
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1001*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}

func TestRedisRateLimiterNoClient(t *testing.T) {
	var l *RedisRateLimiter
	d, err := l.Allow(context.Background(), negotiationQuota, "u")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	l = NewRedisRateLimiter(nil, " custom: ")
	assert.Equal(t, "custom", l.prefix)
	assert.Equal(t, "custom:negotiation:alice", l.key(" negotiation ", "alice"))
}
