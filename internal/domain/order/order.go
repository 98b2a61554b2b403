package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/product"
)

// LineItem is one product line of an order. Name and UnitPrice are
// snapshots taken when the order was placed; later catalog edits do not
// affect them.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Image     string          `json:"image,omitempty"`
}

// NewLineItem snapshots the product's current name, price and first image.
func NewLineItem(p *product.Product, qty int) LineItem {
	li := LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
		UnitPrice: p.Price,
	}
	if len(p.Images) > 0 {
		li.Image = p.Images[0]
	}
	return li
}

// Total returns UnitPrice * Quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Customer holds contact and shipping details.
type Customer struct {
	Name      string
	Phone     string
	Email     string
	Region    string
	SubRegion string
	Address   string
}

// Order is a placed customer order.
type Order struct {
	ID           string
	TrackingCode string
	Customer     Customer
	Items        []LineItem
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Shipping     decimal.Decimal
	Total        decimal.Decimal
	// CouponCode is nil when no coupon was applied.
	CouponCode   *string
	DeliveryMode delivery.Mode
	Status       Status
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Totals returns the order's stored pricing breakdown.
func (o *Order) Totals() Totals {
	return Totals{
		Subtotal: o.Subtotal,
		Discount: o.Discount,
		Shipping: o.Shipping,
		Total:    o.Total,
	}
}

// Filter narrows an order listing.
type Filter struct {
	// Status selects a single status when non-empty.
	Status Status
	// Limit caps the result size when positive.
	Limit int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByTrackingCode(ctx context.Context, code string) (*Order, error)
	// List returns orders newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	// UpdateStatus moves the order from one status to another only if its
	// current status is still from. It returns ErrStatusConflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}

// TxManager runs fn as one atomic unit. Repositories called with the ctx
// passed to fn take part in the same unit.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// IdempotencyStore guards checkout against double submission.
type IdempotencyStore interface {
	// Claim reserves key. When the key was already completed it returns the
	// stored tracking code and claimed=false. When another submission with
	// the same key is still running it returns ErrDuplicateSubmission.
	Claim(ctx context.Context, key string) (trackingCode string, claimed bool, err error)
	// Complete records the tracking code of the order placed under key.
	Complete(ctx context.Context, key, trackingCode string) error
	// Release drops a claim whose submission failed so it can be retried.
	Release(ctx context.Context, key string) error
}
