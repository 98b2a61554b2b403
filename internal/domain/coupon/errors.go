package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Business-rule failures. Each is recoverable by the customer.
var (
	ErrCodeNotFound                 = errors.New("coupon code not found")
	ErrInactive                     = errors.New("coupon is inactive")
	ErrExpired                      = errors.New("coupon expired")
	ErrExhaustedUses                = errors.New("coupon usage limit reached")
	ErrBelowMinimumOrder            = errors.New("order subtotal below coupon minimum")
	ErrConcurrentRedemptionConflict = errors.New("coupon was redeemed by a concurrent order")
	ErrInvalidSubtotal              = errors.New("subtotal must not be negative")
)

// Administrative failures.
var (
	ErrNotFound      = errors.New("coupon not found")
	ErrDuplicateCode = errors.New("coupon code already exists")
	ErrInvalidCoupon = errors.New("invalid coupon")
)

// BelowMinimumOrderError carries the minimum subtotal the coupon requires.
type BelowMinimumOrderError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumOrderError) Error() string {
	return fmt.Sprintf("order subtotal below coupon minimum of %s", e.Minimum.String())
}

// Is makes errors.Is(err, ErrBelowMinimumOrder) hold.
func (e *BelowMinimumOrderError) Is(target error) bool {
	return target == ErrBelowMinimumOrder
}

var reasons = []struct {
	err    error
	reason string
}{
	{ErrCodeNotFound, "code_not_found"},
	{ErrInactive, "inactive"},
	{ErrExpired, "expired"},
	{ErrExhaustedUses, "exhausted_uses"},
	{ErrBelowMinimumOrder, "below_minimum_order"},
	{ErrConcurrentRedemptionConflict, "concurrent_redemption_conflict"},
	{ErrInvalidSubtotal, "invalid_subtotal"},
}

// Reason returns a stable machine-readable name for a coupon rule failure.
// The second result is false for errors that are not coupon rule failures,
// such as storage errors.
func Reason(err error) (string, bool) {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason, true
		}
	}
	return "", false
}
