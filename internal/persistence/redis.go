package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/config"
)

// ErrRedisDisabled is returned by Ping when REDIS_ADDR is empty and the desk
// runs on its in-memory cache.
var ErrRedisDisabled = errors.New("redis cache disabled")

const dialCheckTimeout = 2 * time.Second

// Redis holds the optional connection that lets several desk processes (the
// `serve` daemon and one-shot CLI commands) share cached ticket lists.
type Redis struct {
	Client *redis.Client
}

// NewRedis opens the shared cache connection, or returns nil when no address
// is configured. An unreachable server is logged, not fatal: cache reads then
// miss and every list comes straight from the ticketing API.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		return nil
	}
	r := &Redis{Client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}

	checkCtx, cancel := context.WithTimeout(ctx, dialCheckTimeout)
	defer cancel()
	if err := r.Ping(checkCtx); err != nil {
		logger.Warn("shared ticket cache unreachable, serving lists from the API", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("shared ticket cache connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return r
}

// Ping reports whether the shared cache answers; readiness uses it.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisDisabled
	}
	return r.Client.Ping(ctx).Err()
}

// Close releases the connection. It is safe on a nil *Redis.
func (r *Redis) Close() {
	if r == nil || r.Client == nil {
		return
	}
	_ = r.Client.Close()
}
