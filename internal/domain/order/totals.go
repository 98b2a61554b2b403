package order

import "github.com/shopspring/decimal"

// Totals is the pricing breakdown of an order.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal sums UnitPrice * Quantity over items.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// ComputeTotals prices an order. The discount reduces the item subtotal but
// never below zero, then shipping is added in full:
//
//	total = max(0, subtotal - discount) + shipping
//
// No rounding is applied.
func ComputeTotals(items []LineItem, discount, shipping decimal.Decimal) Totals {
	subtotal := Subtotal(items)

	goods := subtotal.Sub(discount)
	if goods.IsNegative() {
		goods = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    goods.Add(shipping),
	}
}
