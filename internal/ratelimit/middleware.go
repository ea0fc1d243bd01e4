package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-configurator/internal/common"
)

// DefaultPrefix namespaces limiter keys in the store.
const DefaultPrefix = "ratelimit"

// ParseRate reads a formatted rate such as "20-M" (20 per minute).
func ParseRate(formatted string) (limiter.Rate, error) {
	return limiter.NewRateFromFormatted(formatted)
}

// NewRedisStore returns a limiter store shared by every API instance.
func NewRedisStore(client *redis.Client, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
}

// NewMemoryStore returns a process local limiter store.
func NewMemoryStore(prefix string) limiter.Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
}

// Handler enforces a rate per key before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	// Key derives the bucket for a request. Defaults to the client IP.
	Key    func(*http.Request) string
	Logger zerolog.Logger
}

// New builds a Handler limiting each client IP to rate.
func New(store limiter.Store, rate limiter.Rate, logger zerolog.Logger) Handler {
	return Handler{Limiter: limiter.New(store, rate), Logger: logger}
}

// Middleware implements chi middleware. Store failures let the request
// through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		keyFn := h.Key
		if keyFn == nil {
			keyFn = common.ClientIP
		}
		lctx, err := h.Limiter.Get(r.Context(), keyFn(r))
		if err != nil {
			h.Logger.Warn().Err(err).Str("path", r.URL.Path).Msg("rate_limit_store_error")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := time.Until(time.Unix(lctx.Reset, 0)).Seconds()
			headers.Set("Retry-After", strconv.Itoa(max(int(retryAfter), 0)))
			common.JSONError(w, http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
