// Package security provides the per-caller rate limit applied to fund-moving
// endpoints.
package security

import (
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyFunc names the caller for limiting purposes. Return "" to fall back to
// the remote address.
type KeyFunc func(r *http.Request) string

// RateLimiter is a redis fixed-window counter: N requests per caller per
// window. Redis being down fails open; blocking payments on a cache outage is
// worse than briefly not limiting them.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	keyFn  KeyFunc
	log    *zap.SugaredLogger
}

func NewRateLimiter(rdb *redis.Client, perWindow int, window time.Duration, keyFn KeyFunc, log *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: perWindow, window: window, keyFn: keyFn, log: log.Named("ratelimit")}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := ""
		if rl.keyFn != nil {
			caller = rl.keyFn(r)
		}
		if caller == "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			caller = host
		}
		key := "rl:" + caller

		count, err := rl.rdb.Incr(r.Context(), key).Result()
		if err != nil {
			rl.log.Warnw("counter unavailable, allowing", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.rdb.Expire(r.Context(), key, rl.window)
		}
		if count > int64(rl.limit) {
			w.Header().Set("Retry-After", rl.window.String())
			http.Error(w, `{"error":"rate limit exceeded","code":"RATE_LIMITED"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
