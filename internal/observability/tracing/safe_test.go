package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/inventory"),
		attribute.String("Authorization", "Bearer abc"),
		attribute.String("customer.email", "jane@example.com"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorRedactsTokens(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New("upstream rejected Bearer abc.def")), "redacted error")
	assert.EqualError(t, SafeError(errors.New("boom")), "boom")
}
