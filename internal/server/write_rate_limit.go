package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/garageflow/internal/garagecontext"
	"github.com/smallbiznis/garageflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/garageflow/internal/observability/metrics"
	"github.com/smallbiznis/garageflow/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonGarageWrites = "garage-writes"

// WriteRateLimit takes one token from the garage's write bucket. Requests
// pass straight through when no limiter is configured.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		garageID, ok := garagecontext.GarageIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.writeLimiter.AllowGarage(ctx, garageID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("write rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyWriteRateLimit(c, endpoint, garageID.String(), result, s.obsMetrics)
			return
		}

		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		recordRateLimitAllowed(ctx, endpoint, garageID.String(), s.obsMetrics)
		c.Next()
	}
}

func denyWriteRateLimit(c *gin.Context, endpoint, garageID string, result ratelimit.Decision, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("write rate limit exceeded",
		zap.String("reason", rateLimitReasonGarageWrites),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, garageID, rateLimitReasonGarageWrites, metrics)

	c.Header("Retry-After", retryAfterSeconds(result))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonGarageWrites)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(result ratelimit.Decision) string {
	if result.RetryAfter <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
}

func recordRateLimitAllowed(ctx context.Context, endpoint, garageID string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, garageID, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, garageID, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, garageID, endpoint, reason)
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
