package domain

import "github.com/shopspring/decimal"

// Pricing is the money breakdown of an order at creation time.
type Pricing struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// ComputePricing applies the group discount rate to the subtotal and waives
// the flat delivery fee once the subtotal reaches the free-delivery
// threshold. total = subtotal - subtotal*rate + fee.
func ComputePricing(subtotal, groupRate, freeThreshold, flatFee decimal.Decimal) Pricing {
	discount := subtotal.Mul(groupRate)
	fee := flatFee
	if subtotal.GreaterThanOrEqual(freeThreshold) {
		fee = decimal.Zero
	}
	return Pricing{
		Subtotal:    subtotal,
		Discount:    discount,
		DeliveryFee: fee,
		Total:       subtotal.Sub(discount).Add(fee),
	}
}
