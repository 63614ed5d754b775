package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc")
	ctx, id := EnsureCorrelationID(ctx)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())
	assert.Len(t, id, 26)
	assert.Equal(t, id, ExtractCorrelationID(ctx))
}
