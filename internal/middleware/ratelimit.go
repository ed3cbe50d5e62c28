package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

// windowCounter is a fixed-window request counter kept in Redis
type windowCounter struct {
	client *redis.Client
	config RateLimitConfig
}

// hit counts one request for the client and reports the running count and
// the time left in the current window
func (c windowCounter) hit(ctx context.Context, clientID string) (int64, time.Duration, error) {
	key := c.config.KeyPrefix + ":" + clientID

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	left := ttl.Val()
	if left <= 0 {
		// new window, or a key that lost its expiry
		if err := c.client.PExpire(ctx, key, c.config.Window).Err(); err != nil {
			return 0, 0, err
		}
		left = c.config.Window
	}
	return incr.Val(), left, nil
}

// RateLimitMiddleware limits requests per client using a Redis counter.
// Admins are keyed by account, everyone else by remote address. Requests pass
// through untouched when Redis fails.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	counter := windowCounter{client: redisClient, config: config}
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientAddress(r)
			if adminID, ok := GetAdminID(r.Context()); ok {
				clientID = adminID.String()
			}

			count, left, err := counter.hit(r.Context(), clientID)
			if err != nil {
				logger.Error("Rate limit counter unavailable",
					zap.String("client_id", clientID),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(config.RequestsPerWindow) - count
			if remaining < 0 {
				remaining = 0
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(left).Unix(), 10))

			if count > int64(config.RequestsPerWindow) {
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)
				retry := int(left.Round(time.Second) / time.Second)
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
