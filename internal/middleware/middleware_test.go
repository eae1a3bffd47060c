package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/middleware"
)

func TestAuthenticate(t *testing.T) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	good, err := tokens.Issue("user-1")
	require.NoError(t, err)
	forged, err := auth.NewTokens("other-secret", time.Hour).Issue("user-1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", ""},
		{"valid", "Bearer " + good, "user-1"},
		{"lowercase scheme", "bearer " + good, "user-1"},
		{"wrong secret", "Bearer " + forged, ""},
		{"garbage", "Bearer not.a.jwt", ""},
		{"no scheme", good, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var called bool
			h := middleware.Authenticate(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got, _ = middleware.UserID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.True(t, called, "request must never be rejected")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestIDAndClientIP(t *testing.T) {
	var rid, ip string
	h := middleware.RequestID(middleware.ClientIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid = middleware.RequestIDFrom(r.Context())
		ip = middleware.ClientIPFrom(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEmpty(t, rid)
	assert.Equal(t, rid, rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "203.0.113.7", ip)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc-123", rid)

	assert.Equal(t, "unknown", middleware.ClientIPFrom(context.Background()))
}

func TestMemoryLimiter(t *testing.T) {
	rl := middleware.NewMemoryLimiter(0.001, 2)
	defer rl.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
	}
	ok, _ := rl.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)

	// buckets are per key
	ok, _ = rl.Allow(ctx, "5.6.7.8")
	assert.True(t, ok)

	require.NoError(t, rl.Close())
	require.NoError(t, rl.Close())
}

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })

	rl := middleware.NewRedisLimiter(rdb, 0.01, 3)
	ctx := context.Background()
	key := "test-" + time.Now().Format(time.RFC3339Nano)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
