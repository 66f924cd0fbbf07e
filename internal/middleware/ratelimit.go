package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// clientID identifies the caller by IP; chi's RealIP has already rewritten RemoteAddr
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rejectRateLimited(w http.ResponseWriter, limit int, retryAfter time.Duration) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))

	RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// RateLimitMiddleware implements a fixed-window rate limit shared across instances through Redis
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientID(r)
			key := fmt.Sprintf("%s:%s", config.KeyPrefix, client)

			ctx := r.Context()

			// Increment counter
			count, err := redisClient.Incr(ctx, key).Result()
			if err != nil {
				logger.Error("Failed to increment rate limit counter",
					zap.Error(err),
					zap.String("key", key),
				)
				// On Redis error, allow request to proceed
				next.ServeHTTP(w, r)
				return
			}

			// Set expiry on first request
			if count == 1 {
				redisClient.Expire(ctx, key, config.Window)
			}

			if count > int64(config.RequestsPerWindow) {
				ttl, err := redisClient.TTL(ctx, key).Result()
				if err != nil || ttl < 0 {
					ttl = config.Window
				}

				logger.Warn("Rate limit exceeded",
					zap.String("client_id", client),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)

				rejectRateLimited(w, config.RequestsPerWindow, ttl)
				return
			}

			remaining := config.RequestsPerWindow - int(count)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiters holds one token bucket per client. A bucket idle for a full
// window has refilled completely, so it is dropped on the next sweep.
type localLimiters struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLocalLimiters(config RateLimitConfig) *localLimiters {
	idle := config.Window
	if idle <= 0 {
		idle = time.Minute
	}
	return &localLimiters{
		clients: make(map[string]*clientLimiter),
		every:   rate.Every(idle / time.Duration(max(config.RequestsPerWindow, 1))),
		burst:   config.RequestsPerWindow,
		idle:    idle,
		now:     time.Now,
	}
}

func (l *localLimiters) get(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for id, c := range l.clients {
			if now.Sub(c.lastSeen) >= l.idle {
				delete(l.clients, id)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (l *localLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// LocalRateLimitMiddleware limits each client with an in-process token bucket.
// The bucket holds RequestsPerWindow tokens and refills over Window.
func LocalRateLimitMiddleware(config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return localRateLimit(newLocalLimiters(config), config, logger)
}

func localRateLimit(limiters *localLimiters, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientID(r)
			limiter := limiters.get(client)

			reservation := limiter.Reserve()
			if delay := reservation.Delay(); !reservation.OK() || delay > 0 {
				reservation.Cancel()
				if !reservation.OK() {
					delay = limiters.idle
				}
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", client),
					zap.Int("limit", config.RequestsPerWindow),
				)
				rejectRateLimited(w, config.RequestsPerWindow, delay)
				return
			}

			remaining := int(limiter.Tokens())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}
