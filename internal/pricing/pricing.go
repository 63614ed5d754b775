// Package pricing computes the workshop charge breakdown shared by diagnosis
// quotes and invoices.
package pricing

import "github.com/shopspring/decimal"

var (
	// ServiceCharge is the flat workshop fee added to every quote.
	ServiceCharge = decimal.NewFromInt(15)
	// VATRate applies to the subtotal plus the service charge.
	VATRate = decimal.NewFromFloat(0.20)
)

type Line struct {
	Price    decimal.Decimal
	Duration int
}

type Breakdown struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ServiceCharge decimal.Decimal `json:"serviceCharge"`
	VAT           decimal.Decimal `json:"vat"`
	Total         decimal.Decimal `json:"totalAmount"`
	// Minutes of labour across all lines.
	Duration int `json:"duration"`
}

func Quote(lines []Line) Breakdown {
	subtotal := decimal.Zero
	duration := 0
	for _, line := range lines {
		subtotal = subtotal.Add(line.Price)
		duration += line.Duration
	}
	subtotal = subtotal.Round(2)

	taxable := subtotal.Add(ServiceCharge)
	vat := taxable.Mul(VATRate).Round(2)

	return Breakdown{
		Subtotal:      subtotal,
		ServiceCharge: ServiceCharge,
		VAT:           vat,
		Total:         taxable.Add(vat),
		Duration:      duration,
	}
}
