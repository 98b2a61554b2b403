package coupon

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

// Input is the administrator-editable part of a coupon.
type Input struct {
	Code      string
	Kind      Kind
	Value     decimal.Decimal
	MinOrder  decimal.Decimal
	MaxUses   *int
	Active    bool
	ExpiresAt *time.Time
}

// normalize uppercases the code and maps a zero cap to unlimited.
func (in Input) normalize() Input {
	in.Code = NormalizeCode(in.Code)
	if in.MaxUses != nil && *in.MaxUses == 0 {
		in.MaxUses = nil
	}
	return in
}

// Check reports the first administrative rule the input breaks, wrapped
// around ErrInvalidCoupon.
func (in Input) Check() error {
	switch {
	case in.Code == "":
		return errors.Wrap(ErrInvalidCoupon, "code is required")
	case !in.Kind.Valid():
		return errors.Wrapf(ErrInvalidCoupon, "unknown kind %q", in.Kind)
	case in.Value.IsNegative():
		return errors.Wrap(ErrInvalidCoupon, "value must not be negative")
	case in.Kind == KindPercentage && in.Value.GreaterThan(hundred):
		return errors.Wrap(ErrInvalidCoupon, "percentage must not exceed 100")
	case in.MinOrder.IsNegative():
		return errors.Wrap(ErrInvalidCoupon, "minimum order must not be negative")
	case in.MaxUses != nil && *in.MaxUses < 0:
		return errors.Wrap(ErrInvalidCoupon, "max uses must not be negative")
	}
	return nil
}

// Service implements coupon administration on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
	rand io.Reader
}

// NewService creates a coupon administration Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, rand: rand.Reader}
}

// List returns every coupon.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}

// Get returns the coupon with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Coupon, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new coupon with a zero used count.
func (s *Service) Create(ctx context.Context, in Input) (*Coupon, error) {
	in = in.normalize()
	if err := in.Check(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &Coupon{
		ID:        uuid.New().String(),
		Code:      in.Code,
		Kind:      in.Kind,
		Value:     in.Value,
		MinOrder:  in.MinOrder,
		MaxUses:   in.MaxUses,
		Active:    in.Active,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// Update replaces the editable fields of an existing coupon. The used count
// is left untouched.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Coupon, error) {
	in = in.normalize()
	if err := in.Check(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Code = in.Code
	c.Kind = in.Kind
	c.Value = in.Value
	c.MinOrder = in.MinOrder
	c.MaxUses = in.MaxUses
	c.Active = in.Active
	c.ExpiresAt = in.ExpiresAt
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update coupon")
	}
	return c, nil
}

// Delete removes a coupon.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// GenerateCode returns a random code of uppercase letters and digits.
func (s *Service) GenerateCode() (string, error) {
	return generateCode(s.rand)
}

func generateCode(r io.Reader) (string, error) {
	buf := make([]byte, codeLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
