package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/billingportal/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyDownloadUser = "portal:download:user:%s"

// DownloadLimiter caps artifact downloads per signed-in user. The allowance is
// read from the hot-reloaded gateway tuning on every call.
type DownloadLimiter struct {
	enabled bool
	bucket  *TokenBucket
	tuning  *config.GatewayConfigHolder
}

func NewDownloadLimiter(lc fx.Lifecycle, cfg config.Config, tuning *config.GatewayConfigHolder, log *zap.Logger) (*DownloadLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		log.Named("ratelimit").Info("download rate limit disabled")
		return &DownloadLimiter{}, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("rate limit redis unreachable", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return NewDownloadLimiterWith(client, tuning), nil
}

// NewDownloadLimiterWith builds an enabled limiter over an existing client.
func NewDownloadLimiterWith(client redis.Scripter, tuning *config.GatewayConfigHolder) *DownloadLimiter {
	return &DownloadLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		tuning:  tuning,
	}
}

func (l *DownloadLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow always admits the request when the limiter is disabled or the
// configured rate is zero.
func (l *DownloadLimiter) Allow(ctx context.Context, userID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	limit := l.tuning.Get().Download
	if limit.RatePerMinute <= 0 || limit.Burst <= 0 {
		return &Result{Allowed: true}, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &Result{Allowed: false}, errors.New("rate limiter user is empty")
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyDownloadUser, userID), float64(limit.RatePerMinute)/60, limit.Burst)
}
