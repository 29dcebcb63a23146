package router

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"fraud-risk-engine/internal/pkg/config"
)

const limiterKeyPrefix = "fraud:limiter"

// NewRateLimiter builds the per-client-IP limiter for the check endpoint.
// It returns nil when limiting is disabled. With a Redis client the
// counters are shared across instances; otherwise they live in memory.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) (*limiter.Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", cfg.Rate, err)
	}

	var store limiter.Store
	if rdb != nil {
		store, err = sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: limiterKeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterKeyPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}
	return limiter.New(store, rate, limiter.WithTrustForwardHeader(true)), nil
}

func rateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	mw := stdlib.NewMiddleware(l,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
	return mw.Handler
}
