package garagecontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// GarageContextKey is the request context key for the active garage ID.
type GarageContextKey struct{}

// WithGarageID stores the garage ID in the context.
func WithGarageID(ctx context.Context, garageID snowflake.ID) context.Context {
	return context.WithValue(ctx, GarageContextKey{}, garageID)
}

// GarageIDFromContext returns the garage ID from context, if set.
func GarageIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(GarageContextKey{}).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}
