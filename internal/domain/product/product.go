package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a stock decrement would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidProduct wraps administrative input failures.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	// Images holds opaque image references, relative paths or absolute URLs.
	Images    []string
	Featured  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InStock reports whether qty units can be sold.
func (p *Product) InStock(qty int) bool {
	return p.Stock >= qty
}

// Filter narrows a catalog listing.
type Filter struct {
	Category     string
	FeaturedOnly bool
	// Limit caps the result size when positive.
	Limit int
}

// Repository defines catalog persistence.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	// DecrementStock subtracts qty only when at least qty units remain, as a
	// single conditional update. It returns ErrInsufficientStock otherwise.
	DecrementStock(ctx context.Context, id string, qty int) error
}
