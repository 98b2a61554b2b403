package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator checks a coupon code against an order subtotal.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Result, error)
}

// RepoValidator implements Validator by looking coupons up in a Repository
// and evaluating them with Evaluate. It never mutates the coupon.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate normalizes the code, looks the coupon up and evaluates it against
// the subtotal. Validating the same code twice without an intervening
// redemption yields the same result.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Result, error) {
	if subtotal.IsNegative() {
		return nil, ErrInvalidSubtotal
	}
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCodeNotFound
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	discount, err := Evaluate(c, subtotal, v.now())
	if err != nil {
		return nil, err
	}

	return &Result{Coupon: c, Discount: discount}, nil
}
