package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeaturedLimit caps the featured listing on the storefront home page.
const FeaturedLimit = 8

// Input is the administrator-editable part of a product.
type Input struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	Images      []string
	Featured    bool
}

// Check reports the first rule the input breaks, wrapped around
// ErrInvalidProduct.
func (in Input) Check() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return errors.Wrap(ErrInvalidProduct, "name is required")
	case in.Price.IsNegative():
		return errors.Wrap(ErrInvalidProduct, "price must not be negative")
	case in.Stock < 0:
		return errors.Wrap(ErrInvalidProduct, "stock must not be negative")
	}
	return nil
}

// Service implements catalog browsing and administration.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns products matching the filter. Featured listings never exceed
// FeaturedLimit items.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	if f.FeaturedOnly && (f.Limit <= 0 || f.Limit > FeaturedLimit) {
		f.Limit = FeaturedLimit
	}
	return s.repo.List(ctx, f)
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	if err := in.Check(); err != nil {
		return nil, err
	}
	now := s.now()
	p := &Product{
		ID:        uuid.New().String(),
		CreatedAt: now,
	}
	apply(p, in, now)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update replaces the editable fields of a product. Orders already placed
// keep their own price snapshot.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	if err := in.Check(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(p, in, s.now())

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return p, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func apply(p *Product, in Input, now time.Time) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price
	p.Stock = in.Stock
	p.Category = strings.TrimSpace(in.Category)
	p.Images = in.Images
	p.Featured = in.Featured
	p.UpdatedAt = now
}
