package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func limitedHandler(t *testing.T, limit int, prefix string) (http.Handler, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	config := RateLimitConfig{RequestsPerWindow: limit, Window: time.Minute, KeyPrefix: prefix}
	return RateLimitMiddleware(client, config, zap.NewNop())(okHandler), mr
}

func fromAddr(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = addr
	return req
}

// Property: each client gets exactly its allowance per window, the remaining
// header counts down, and other clients are unaffected
func TestProperty_RateLimitAllowancePerClient(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("allowance is enforced per client", prop.ForAll(
		func(limit int, excess int) bool {
			handler, mr := limitedHandler(t, limit, "rate_limit:test")
			defer mr.Close()

			allowed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, fromAddr("192.168.1.100:51000"))

				switch w.Code {
				case http.StatusOK:
					allowed++
					if w.Header().Get("X-RateLimit-Remaining") != strconv.Itoa(limit-allowed) {
						t.Logf("FAIL: remaining header %q after %d requests", w.Header().Get("X-RateLimit-Remaining"), allowed)
						return false
					}
				case http.StatusTooManyRequests:
					blocked++
					if w.Header().Get("Retry-After") == "" {
						return false
					}
				}
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, fromAddr("10.0.0.7:40000"))

			return allowed == limit && blocked == excess && w.Code == http.StatusOK
		},
		gen.IntRange(3, 15),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimitKeysAdminsByAccount(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	limiter := RateLimitMiddleware(redisClient, RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		KeyPrefix:         "admin",
	}, zap.NewNop())
	handler := limiter(okHandler)

	send := func(adminID uuid.UUID, port string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/products", nil)
		req.RemoteAddr = "10.0.0.1:" + port
		req = req.WithContext(context.WithValue(req.Context(), AdminIDKey, adminID))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	first, second := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusOK, send(first, "1000"))
	assert.Equal(t, http.StatusTooManyRequests, send(first, "2000"), "same account from another port shares the window")
	assert.Equal(t, http.StatusOK, send(second, "1000"))

	require.True(t, mr.Exists("admin:"+first.String()))
	ttl := mr.TTL("admin:" + first.String())
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

func TestRateLimitFailsOpenWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer redisClient.Close()
	mr.Close()

	limiter := RateLimitMiddleware(redisClient, RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, KeyPrefix: "down"}, zap.NewNop())
	handler := limiter(okHandler)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
