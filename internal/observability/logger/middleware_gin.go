package logger

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	auditcontext "github.com/smallbiznis/garageflow/internal/auditcontext"
	obscontext "github.com/smallbiznis/garageflow/internal/observability/context"
	"github.com/smallbiznis/garageflow/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// Probes and scrapes log at debug unless they fail.
var quietRoutes = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// Gin keys handlers set to name the record a request acted on.
var resourceKeys = []string{"job_sheet_id", "booking_id", "item_id", "invoice_id"}

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps the handler error to the (type, code) pair the
	// client saw in the error envelope.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware stamps request and correlation ids onto the context, then
// writes one http_request line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFrom(c)
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		ctx := c.Request.Context()
		ctx = obscontext.WithRequestID(ctx, requestID)
		ctx = auditcontext.WithRequestID(ctx, requestID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		ctx = correlation.ContextWithCorrelationID(ctx, strings.TrimSpace(c.GetHeader(correlation.HeaderName)))
		ctx, correlationID := correlation.EnsureCorrelationID(ctx)
		c.Header(correlation.HeaderName, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		for _, key := range resourceKeys {
			if v, ok := c.Get(key); ok {
				fields = append(fields, zap.String(key, fmt.Sprint(v)))
			}
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, errorFields(cfg, last.Err)...)
		}

		// The handler chain may have replaced the request context with an
		// authenticated one.
		if ce := FromContext(c.Request.Context()).Check(requestLevel(route, status), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFrom(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetString("request_id")); id != "" {
		return id
	}
	return uuid.NewString()
}

func errorFields(cfg MiddlewareConfig, err error) []zap.Field {
	var errType, errCode string
	if cfg.ErrorClassifier != nil {
		errType, errCode = cfg.ErrorClassifier(err)
	}
	fields := []zap.Field{
		zap.String("error_type", errType),
		zap.String("error_code", errCode),
	}
	if cfg.Debug {
		fields = append(fields, zap.Stack("stack"))
	}
	return fields
}

func requestLevel(route string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status < http.StatusBadRequest && isQuiet(route):
		return zapcore.DebugLevel
	case status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func isQuiet(route string) bool {
	_, ok := quietRoutes[strings.ToLower(route)]
	return ok
}
