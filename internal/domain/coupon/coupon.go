package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage of the order subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed takes a fixed amount, capped at the order subtotal.
	KindFixed Kind = "fixed"
)

// Valid reports whether k is a known discount kind.
func (k Kind) Valid() bool {
	return k == KindPercentage || k == KindFixed
}

// Coupon is a redeemable discount code.
type Coupon struct {
	ID       string
	Code     string
	Kind     Kind
	Value    decimal.Decimal
	MinOrder decimal.Decimal
	// MaxUses is nil for an unlimited coupon. A non-positive value is
	// treated the same way.
	MaxUses   *int
	UsedCount int
	Active    bool
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unlimited reports whether the coupon has no redemption cap.
func (c *Coupon) Unlimited() bool {
	return c.MaxUses == nil || *c.MaxUses <= 0
}

// Exhausted reports whether every allowed redemption has been used.
func (c *Coupon) Exhausted() bool {
	return !c.Unlimited() && c.UsedCount >= *c.MaxUses
}

// Expired reports whether the coupon expiry lies strictly before now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// RemainingUses returns the number of redemptions left, or -1 when unlimited.
func (c *Coupon) RemainingUses() int {
	if c.Unlimited() {
		return -1
	}
	return max(*c.MaxUses-c.UsedCount, 0)
}

// Result is the outcome of a successful validation.
type Result struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// NormalizeCode trims surrounding whitespace and uppercases the code.
// Codes are stored and compared in this form.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Redeemer consumes one use of a coupon.
type Redeemer interface {
	// Redeem increments the used count of an active coupon only while it is
	// below the cap, as a single compare-and-increment in the store. It
	// returns the new used count, or ErrConcurrentRedemptionConflict when no
	// redemption remained.
	Redeem(ctx context.Context, code string) (int, error)
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	Redeemer

	// FindByCode returns ErrCodeNotFound when no coupon has the code.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	GetByID(ctx context.Context, id string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
}
