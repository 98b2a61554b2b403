package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/product"
)

// CartItem is a requested product and quantity.
type CartItem struct {
	ProductID string
	Quantity  int
}

// Checkout is the input for quoting and placing an order.
type Checkout struct {
	Items        []CartItem
	Customer     Customer
	DeliveryMode delivery.Mode
	CouponCode   string
	Notes        string
	// IdempotencyKey makes a repeated submission return the first order.
	IdempotencyKey string
}

// Quote is a fully priced checkout that has not been persisted.
type Quote struct {
	Items  []LineItem
	Coupon *coupon.Result
	Totals
}

// Deps holds the collaborators of a Service.
type Deps struct {
	Products  product.Repository
	Validator coupon.Validator
	Redeemer  coupon.Redeemer
	Orders    Repository
	Rates     delivery.Resolver
	Tx        TxManager
	// Idempotency is optional.
	Idempotency IdempotencyStore
	// Meter is optional; a no-op meter is used when nil.
	Meter metric.Meter
}

// Service encapsulates checkout and order lifecycle business logic.
type Service struct {
	products product.Repository
	coupons  coupon.Validator
	redeemer coupon.Redeemer
	orders   Repository
	rates    delivery.Resolver
	tx       TxManager
	idem     IdempotencyStore
	metrics  *metrics

	now             func() time.Time
	newTrackingCode func() (string, error)
}

// NewService creates an order Service.
func NewService(d Deps) (*Service, error) {
	meter := d.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("storefront/order")
	}
	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}
	return &Service{
		products:        d.Products,
		coupons:         d.Validator,
		redeemer:        d.Redeemer,
		orders:          d.Orders,
		rates:           d.Rates,
		tx:              d.Tx,
		idem:            d.Idempotency,
		metrics:         m,
		now:             time.Now,
		newTrackingCode: NewTrackingCode,
	}, nil
}

// ValidateCoupon checks a coupon code against a subtotal without consuming
// a use.
func (s *Service) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*coupon.Result, error) {
	res, err := s.coupons.Validate(ctx, code, subtotal)
	if err != nil {
		s.recordRejection(ctx, err)
		return nil, err
	}
	return res, nil
}

// Quote prices a checkout: line items from the current catalog, delivery
// from the rate table and the coupon discount. Nothing is persisted.
func (s *Service) Quote(ctx context.Context, req Checkout) (*Quote, error) {
	items, err := s.lineItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	shipping, err := s.rates.Resolve(req.Customer.Region, req.DeliveryMode)
	if err != nil {
		return nil, err
	}

	q := &Quote{Items: items}
	discount := decimal.Zero
	if strings.TrimSpace(req.CouponCode) != "" {
		res, err := s.ValidateCoupon(ctx, req.CouponCode, Subtotal(items))
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		q.Coupon = res
		discount = res.Discount
	}

	q.Totals = ComputeTotals(items, discount, shipping)
	return q, nil
}

// Commit places an order. The coupon redemption, stock decrements and the
// order insert happen in one transaction: if any step fails nothing is
// persisted and no coupon use is consumed.
func (s *Service) Commit(ctx context.Context, req Checkout) (_ *Order, rerr error) {
	if err := s.checkCustomer(req); err != nil {
		return nil, err
	}

	if key := req.IdempotencyKey; key != "" && s.idem != nil {
		code, claimed, err := s.idem.Claim(ctx, key)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return s.orders.GetByTrackingCode(ctx, code)
		}
		defer func() {
			if rerr == nil {
				return
			}
			if err := s.idem.Release(ctx, key); err != nil {
				zctx.From(ctx).Warn("Release idempotency key", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	q, err := s.Quote(ctx, req)
	if err != nil {
		return nil, err
	}

	tracking, err := s.newTrackingCode()
	if err != nil {
		return nil, errors.Wrap(err, "tracking code")
	}

	now := s.now()
	o := &Order{
		ID:           uuid.New().String(),
		TrackingCode: tracking,
		Customer:     req.Customer,
		Items:        q.Items,
		Subtotal:     q.Subtotal,
		Discount:     q.Discount,
		Shipping:     q.Shipping,
		Total:        q.Total,
		DeliveryMode: req.DeliveryMode,
		Status:       StatusPending,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if q.Coupon != nil {
		code := q.Coupon.Coupon.Code
		o.CouponCode = &code
	}

	if err := s.tx.Do(ctx, func(ctx context.Context) error {
		return s.persist(ctx, o)
	}); err != nil {
		return nil, err
	}

	s.metrics.committed.Add(ctx, 1)
	if o.CouponCode != nil {
		s.metrics.redemptions.Add(ctx, 1)
	}

	if req.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.Complete(ctx, req.IdempotencyKey, o.TrackingCode); err != nil {
			zctx.From(ctx).Warn("Complete idempotency key", zap.String("key", req.IdempotencyKey), zap.Error(err))
		}
	}

	zctx.From(ctx).Info("Order committed",
		zap.String("order_id", o.ID),
		zap.String("tracking_code", o.TrackingCode),
		zap.Stringer("total", o.Total),
		zap.Stringp("coupon", o.CouponCode),
	)
	return o, nil
}

// persist must run inside a transaction.
func (s *Service) persist(ctx context.Context, o *Order) error {
	if o.CouponCode != nil {
		if _, err := s.redeemer.Redeem(ctx, *o.CouponCode); err != nil {
			if errors.Is(err, coupon.ErrConcurrentRedemptionConflict) {
				s.metrics.conflicts.Add(ctx, 1)
				zctx.From(ctx).Warn("Coupon redemption conflict", zap.String("coupon", *o.CouponCode))
				return err
			}
			return errors.Wrap(err, "redeem coupon")
		}
	}

	for _, li := range o.Items {
		if err := s.products.DecrementStock(ctx, li.ProductID, li.Quantity); err != nil {
			if errors.Is(err, product.ErrInsufficientStock) {
				return &OutOfStockError{ProductID: li.ProductID, Requested: li.Quantity}
			}
			return errors.Wrapf(err, "decrement stock for %s", li.ProductID)
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

// lineItems merges duplicate products, fetches them in one batch and
// snapshots their current price.
func (s *Service) lineItems(ctx context.Context, cart []CartItem) ([]LineItem, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, 0, len(cart))
	qty := make(map[string]int, len(cart))
	for _, item := range cart {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if _, seen := qty[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		qty[item.ProductID] += item.Quantity
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	items := make([]LineItem, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		if !p.InStock(qty[id]) {
			return nil, &OutOfStockError{ProductID: id, Requested: qty[id]}
		}
		items = append(items, NewLineItem(p, qty[id]))
	}
	return items, nil
}

// subRegionChecker is implemented by rate tables that know municipalities.
type subRegionChecker interface {
	HasSubRegion(regionID, subRegionID string) bool
}

func (s *Service) checkCustomer(req Checkout) error {
	c := req.Customer
	switch {
	case strings.TrimSpace(c.Name) == "":
		return errors.Wrap(ErrInvalidCustomer, "name is required")
	case strings.TrimSpace(c.Phone) == "":
		return errors.Wrap(ErrInvalidCustomer, "phone is required")
	case strings.TrimSpace(c.Region) == "":
		return errors.Wrap(ErrInvalidCustomer, "region is required")
	case strings.TrimSpace(c.SubRegion) == "":
		return errors.Wrap(ErrInvalidCustomer, "sub-region is required")
	case req.DeliveryMode == delivery.ModeHome && strings.TrimSpace(c.Address) == "":
		return errors.Wrap(ErrInvalidCustomer, "address is required for home delivery")
	}
	if _, err := s.rates.Resolve(c.Region, req.DeliveryMode); err != nil {
		return err
	}
	if sc, ok := s.rates.(subRegionChecker); ok && !sc.HasSubRegion(c.Region, c.SubRegion) {
		return errors.Wrapf(ErrInvalidCustomer, "sub-region %q is not in region %q", c.SubRegion, c.Region)
	}
	return nil
}

func (s *Service) recordRejection(ctx context.Context, err error) {
	reason, ok := coupon.Reason(err)
	if !ok {
		return
	}
	s.metrics.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns orders newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	return s.orders.List(ctx, f)
}

// Track looks an order up by its tracking code. Inputs shorter than
// MinTrackingLookup are treated as unknown.
func (s *Service) Track(ctx context.Context, code string) (*Order, error) {
	code = NormalizeTrackingCode(code)
	if len(code) < MinTrackingLookup {
		return nil, ErrNotFound
	}
	return s.orders.GetByTrackingCode(ctx, code)
}

// Advance moves an order forward in its lifecycle. Moving to an earlier or
// equal status is rejected with ErrInvalidTransition.
func (s *Service) Advance(ctx context.Context, id string, to Status) (*Order, error) {
	if to.rank() < 0 {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", to)
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAdvance(o.Status, to) {
		return nil, &TransitionError{From: o.Status, To: to}
	}

	if err := s.setStatus(ctx, o, to); err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Order status advanced",
		zap.String("order_id", o.ID),
		zap.String("status", string(to)),
	)
	return o, nil
}

// Correct sets an order to any other status, including an earlier one. It
// is the explicit escape hatch for administrative mistakes and requires a
// reason.
func (s *Service) Correct(ctx context.Context, id string, to Status, reason string) (*Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if to.rank() < 0 {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", to)
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == to {
		return nil, &TransitionError{From: o.Status, To: to}
	}

	from := o.Status
	if err := s.setStatus(ctx, o, to); err != nil {
		return nil, err
	}
	zctx.From(ctx).Warn("Order status corrected",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)
	return o, nil
}

func (s *Service) setStatus(ctx context.Context, o *Order, to Status) error {
	now := s.now()
	if err := s.orders.UpdateStatus(ctx, o.ID, o.Status, to, now); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}
