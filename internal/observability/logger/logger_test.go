package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/garageflow/internal/observability/context"
	"github.com/smallbiznis/garageflow/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsOnlyPresentFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithGarageID(context.Background(), "4242")
	ctx = obscontext.WithActor(ctx, "user", "tech-1")
	ctx = correlation.ContextWithCorrelationID(ctx, "corr-1")

	WithContext(ctx, base).Info("stock decrease clamped at zero")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "4242", fields["garage_id"])
	assert.Equal(t, "user", fields["actor_type"])
	assert.Equal(t, "tech-1", fields["actor_id"])
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.NotContains(t, fields, "request_id")
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextWithoutValuesReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestConfigRejectsUnknownLevel(t *testing.T) {
	_, err := Config{Level: "loud"}.zapConfig()
	assert.Error(t, err)

	zc, err := Config{Format: "Console", Level: "debug"}.zapConfig()
	require.NoError(t, err)
	assert.Equal(t, "console", zc.Encoding)
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", 200))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/health", 503))
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/metrics", 200))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/inventory", 201))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/inventory", 409))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/api/stock-movement", 429))
}
