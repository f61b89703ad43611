// Package ratelimit throttles sensitive endpoints per client IP.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	defaultPrefix   = "shelf:ratelimit:"
	defaultMaxRetry = 3
	pingTimeout     = 3 * time.Second
)

var errInvalidRate = errors.New("rate limit must be positive")

// Config describes one rate limit.
type Config struct {
	Limit     int64
	Period    time.Duration
	RedisAddr string
	Prefix    string
	Logger    *zap.Logger
	OnLimited func(route string)
}

// Limiter is a gin middleware backed by a memory or Redis store.
type Limiter struct {
	handler gin.HandlerFunc
	client  *redis.Client
}

// New builds a limiter. A Redis store is used when RedisAddr is set so that
// several instances share counters; otherwise counters live in process memory.
func New(ctx context.Context, cfg Config) (*Limiter, error) {
	if cfg.Limit <= 0 {
		return nil, errInvalidRate
	}
	period := cfg.Period
	if period <= 0 {
		period = time.Minute
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	onLimited := cfg.OnLimited
	if onLimited == nil {
		onLimited = func(string) {}
	}

	var (
		store  limiter.Store
		client *redis.Client
		err    error
	)
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client = redis.NewClient(&redis.Options{Addr: addr})
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect rate limit redis: %w", err)
		}
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix, MaxRetry: defaultMaxRetry})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: period})
	}

	instance := limiter.New(store, limiter.Rate{Period: period, Limit: cfg.Limit})
	handler := mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			onLimited(c.FullPath())
			logger.Warn("rate limit reached",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// Fail open while the store is unavailable.
			logger.Error("rate limit store failed", zap.Error(err))
			c.Next()
		}),
	)
	return &Limiter{handler: handler, client: client}, nil
}

// Middleware returns the gin handler enforcing the limit.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return l.handler
}

// Close releases the Redis connection when one was opened.
func (l *Limiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
