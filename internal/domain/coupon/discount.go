package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluate checks the coupon against the subtotal at the given instant and
// returns the discount it grants. Checks run in a fixed order and the first
// failure wins: inactive, expired, exhausted, below minimum.
//
// The discount is returned at full precision. Rounding is a presentation
// concern.
func Evaluate(c *Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.Active {
		return decimal.Zero, ErrInactive
	}
	if c.Expired(now) {
		return decimal.Zero, ErrExpired
	}
	if c.Exhausted() {
		return decimal.Zero, ErrExhaustedUses
	}
	if subtotal.LessThan(c.MinOrder) {
		return decimal.Zero, &BelowMinimumOrderError{Minimum: c.MinOrder}
	}

	switch c.Kind {
	case KindPercentage:
		return applyPercentage(c.Value, subtotal), nil
	case KindFixed:
		return applyFixed(c.Value, subtotal), nil
	default:
		return decimal.Zero, errors.Wrapf(ErrInvalidCoupon, "unsupported kind %q", c.Kind)
	}
}

func applyPercentage(value, subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(value).Div(hundred)
}

func applyFixed(value, subtotal decimal.Decimal) decimal.Decimal {
	return decimal.Min(value, subtotal)
}
