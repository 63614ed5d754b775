package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestQuoteAppliesServiceChargeAndVAT(t *testing.T) {
	got := Quote([]Line{
		{Price: decimal.NewFromInt(50), Duration: 60},
		{Price: decimal.NewFromInt(30), Duration: 30},
	})

	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(80)))
	assert.True(t, got.ServiceCharge.Equal(decimal.NewFromInt(15)))
	assert.True(t, got.VAT.Equal(decimal.NewFromInt(19)))
	assert.Equal(t, "114.00", got.Total.StringFixed(2))
	assert.Equal(t, 90, got.Duration)
}

func TestQuoteEmptyStillChargesServiceFee(t *testing.T) {
	got := Quote(nil)
	assert.Equal(t, "18.00", got.Total.StringFixed(2))
}

func TestQuoteRoundsVATToPence(t *testing.T) {
	got := Quote([]Line{{Price: decimal.RequireFromString("19.99")}})
	// (19.99 + 15) * 0.2 = 6.998
	assert.Equal(t, "7.00", got.VAT.StringFixed(2))
	assert.Equal(t, "41.99", got.Total.StringFixed(2))
}
