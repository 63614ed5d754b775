package tracing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/garageflow/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "garageflow/http"

// Gin context keys handlers set so the span can name the record they touched.
var spanResourceKeys = []string{"job_sheet_id", "booking_id", "item_id", "invoice_id"}

// GinMiddleware opens one server span per request. Garage and actor are
// attached after the handler chain, once auth has resolved them.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withBaggage(ctx, "request_id", requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName(c.Request.Method + " " + route)
		span.SetAttributes(SafeAttributes(requestAttributes(c, route, status, time.Since(start))...)...)

		if status >= http.StatusInternalServerError {
			if last := c.Errors.Last(); last != nil {
				if safeErr := SafeError(last.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func requestAttributes(c *gin.Context, route string, status int, elapsed time.Duration) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
		attribute.Int64("http.server_duration_ms", elapsed.Milliseconds()),
	}

	reqCtx := c.Request.Context()
	if garageID := obscontext.GarageIDFromContext(reqCtx); garageID != "" {
		attrs = append(attrs, attribute.String("garage_id", garageID))
	}
	if actorType, actorID := obscontext.ActorFromContext(reqCtx); actorID != "" {
		attrs = append(attrs,
			attribute.String("actor.type", actorType),
			attribute.String("actor.id", actorID),
		)
	}
	for _, key := range spanResourceKeys {
		if v, ok := c.Get(key); ok {
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return attrs
}

func withBaggage(ctx context.Context, key, value string) context.Context {
	member, err := baggage.NewMember(key, value)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
