package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/billingportal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/billingportal/internal/observability/metrics"
	"github.com/smallbiznis/billingportal/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonUserRate = "user-rate"

// DownloadRateLimit throttles artifact downloads per signed-in user.
// A limiter outage fails open; downloads are already authorised by the session.
func (s *Server) DownloadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.downloadLimiter == nil || !s.downloadLimiter.Enabled() {
			c.Next()
			return
		}

		identity, ok := identityFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		result, err := s.downloadLimiter.Allow(ctx, identity.ID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("download rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if result != nil && !result.Allowed {
			denyDownloadRateLimit(c, endpoint, result, s.obsMetrics)
			return
		}

		c.Next()
	}
}

func denyDownloadRateLimit(c *gin.Context, endpoint string, result *ratelimit.Result, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("download rate limit exceeded",
		zap.String("reason", rateLimitReasonUserRate),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, rateLimitReasonUserRate, metrics)

	retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonUserRate)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
