package garagecontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestGarageIDRoundTrip(t *testing.T) {
	_, ok := GarageIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithGarageID(context.Background(), snowflake.ID(77))
	id, ok := GarageIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(77), id)
}

func TestGarageIDZeroIsAbsent(t *testing.T) {
	_, ok := GarageIDFromContext(WithGarageID(context.Background(), 0))
	assert.False(t, ok)
}
