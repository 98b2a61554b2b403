package order_test

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/memory"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func intPtr(v int) *int { return &v }

type fixture struct {
	products *memory.ProductRepository
	coupons  *memory.CouponRepository
	orders   order.Repository
	idem     *memory.IdempotencyStore
	svc      *order.Service
}

type option func(*fixture)

func withOrders(repo order.Repository) option {
	return func(f *fixture) { f.orders = repo }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	f := &fixture{
		products: memory.NewProductRepository(
			product.Product{ID: "p1", Name: "Kaftan", Price: d("1000"), Stock: 10, Images: []string{"kaftan.jpg"}},
			product.Product{ID: "p2", Name: "Scarf", Price: d("250.50"), Stock: 2},
		),
		coupons: memory.NewCouponRepository(
			coupon.Coupon{ID: "c1", Code: "SUMMER20", Kind: coupon.KindPercentage, Value: d("20"), MinOrder: d("1000"), Active: true},
			coupon.Coupon{ID: "c2", Code: "FLAT500", Kind: coupon.KindFixed, Value: d("500"), Active: true},
			coupon.Coupon{ID: "c3", Code: "LAST", Kind: coupon.KindFixed, Value: d("100"), Active: true, MaxUses: intPtr(5), UsedCount: 4},
		),
		orders: memory.NewOrderRepository(),
		idem:   memory.NewIdempotencyStore(),
	}
	for _, opt := range opts {
		opt(f)
	}

	rates, err := delivery.NewTable([]delivery.Region{{
		ID:         "16",
		Name:       "Alger",
		Rate:       delivery.Rate{Home: d("400"), Desk: d("250")},
		SubRegions: []delivery.SubRegion{{ID: "1601", Name: "Alger Centre"}},
	}})
	require.NoError(t, err)

	svc, err := order.NewService(order.Deps{
		Products:    f.products,
		Validator:   coupon.NewRepoValidator(f.coupons),
		Redeemer:    f.coupons,
		Orders:      f.orders,
		Rates:       rates,
		Tx:          memory.NewTxManager(),
		Idempotency: f.idem,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func customer() order.Customer {
	return order.Customer{
		Name:      "Amina",
		Phone:     "0555123456",
		Region:    "16",
		SubRegion: "1601",
		Address:   "12 rue Didouche Mourad",
	}
}

func checkout(code string, items ...order.CartItem) order.Checkout {
	return order.Checkout{
		Items:        items,
		Customer:     customer(),
		DeliveryMode: delivery.ModeHome,
		CouponCode:   code,
	}
}

func (f *fixture) usedCount(t *testing.T, code string) int {
	t.Helper()
	c, err := f.coupons.FindByCode(context.Background(), code)
	require.NoError(t, err)
	return c.UsedCount
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		req     order.Checkout
		want    order.Totals
		wantErr error
	}{
		{
			name: "no coupon home delivery",
			req:  checkout("", order.CartItem{ProductID: "p1", Quantity: 1}, order.CartItem{ProductID: "p2", Quantity: 2}),
			want: order.Totals{Subtotal: d("1501"), Discount: d("0"), Shipping: d("400"), Total: d("1901")},
		},
		{
			name: "percentage coupon",
			req:  checkout("summer20", order.CartItem{ProductID: "p1", Quantity: 1}, order.CartItem{ProductID: "p2", Quantity: 2}),
			want: order.Totals{Subtotal: d("1501"), Discount: d("300.2"), Shipping: d("400"), Total: d("1600.8")},
		},
		{
			name: "fixed coupon larger than subtotal keeps shipping",
			req:  checkout("FLAT500", order.CartItem{ProductID: "p2", Quantity: 1}),
			want: order.Totals{Subtotal: d("250.5"), Discount: d("250.5"), Shipping: d("400"), Total: d("400")},
		},
		{
			name: "duplicate lines are merged",
			req:  checkout("", order.CartItem{ProductID: "p1", Quantity: 1}, order.CartItem{ProductID: "p1", Quantity: 2}),
			want: order.Totals{Subtotal: d("3000"), Discount: d("0"), Shipping: d("400"), Total: d("3400")},
		},
		{
			name:    "below minimum",
			req:     checkout("SUMMER20", order.CartItem{ProductID: "p2", Quantity: 1}),
			wantErr: coupon.ErrBelowMinimumOrder,
		},
		{
			name:    "unknown coupon",
			req:     checkout("NOPE", order.CartItem{ProductID: "p1", Quantity: 1}),
			wantErr: coupon.ErrCodeNotFound,
		},
		{
			name:    "empty cart",
			req:     checkout(""),
			wantErr: order.ErrEmptyItems,
		},
		{
			name:    "zero quantity",
			req:     checkout("", order.CartItem{ProductID: "p1", Quantity: 0}),
			wantErr: order.ErrInvalidQuantity,
		},
		{
			name:    "not enough stock",
			req:     checkout("", order.CartItem{ProductID: "p2", Quantity: 3}),
			wantErr: product.ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := f.svc.Quote(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Subtotal.Equal(q.Subtotal), "subtotal %s", q.Subtotal)
			assert.True(t, tt.want.Discount.Equal(q.Discount), "discount %s", q.Discount)
			assert.True(t, tt.want.Shipping.Equal(q.Shipping), "shipping %s", q.Shipping)
			assert.True(t, tt.want.Total.Equal(q.Total), "total %s", q.Total)
		})
	}
}

func TestQuote_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Quote(context.Background(), checkout("", order.CartItem{ProductID: "missing", Quantity: 1}))

	var pnf *order.ProductNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, "missing", pnf.ProductID)
}

func TestQuote_UnpricedRegion(t *testing.T) {
	f := newFixture(t)
	req := checkout("", order.CartItem{ProductID: "p1", Quantity: 1})
	req.Customer.Region = "48"

	_, err := f.svc.Quote(context.Background(), req)
	require.ErrorIs(t, err, delivery.ErrRegionPricingNotFound)
}

func TestCommit_UnpricedRegion(t *testing.T) {
	f := newFixture(t)
	req := checkout("summer20", order.CartItem{ProductID: "p1", Quantity: 1})
	req.Customer.Region = "48"

	_, err := f.svc.Commit(context.Background(), req)
	require.ErrorIs(t, err, delivery.ErrRegionPricingNotFound)
	assert.NotErrorIs(t, err, order.ErrInvalidCustomer)
	assert.Equal(t, 10, f.stock(t, "p1"))
	assert.Zero(t, f.usedCount(t, "SUMMER20"))
}

// Half-cent discounts are stored at full precision so the stored total
// still equals subtotal minus discount plus shipping.
func TestCommit_FractionalDiscountRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.products.Create(ctx, &product.Product{ID: "p3", Name: "Pin", Price: d("10.05"), Stock: 1}))
	require.NoError(t, f.coupons.Create(ctx, &coupon.Coupon{ID: "c4", Code: "HALF", Kind: coupon.KindPercentage, Value: d("50"), Active: true}))

	placed, err := f.svc.Commit(ctx, checkout("half", order.CartItem{ProductID: "p3", Quantity: 1}))
	require.NoError(t, err)
	assert.True(t, d("5.025").Equal(placed.Discount), "discount %s", placed.Discount)

	tracked, err := f.svc.Track(ctx, placed.TrackingCode)
	require.NoError(t, err)
	for _, o := range []*order.Order{placed, tracked} {
		assert.True(t, d("10.05").Equal(o.Subtotal))
		assert.True(t, d("400").Equal(o.Shipping))
		assert.True(t, d("405.025").Equal(o.Total), "total %s", o.Total)
		assert.True(t, o.Subtotal.Sub(o.Discount).Add(o.Shipping).Equal(o.Total))
	}
}

func TestCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.Commit(ctx, checkout("summer20", order.CartItem{ProductID: "p1", Quantity: 2}))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ORD-[A-Z2-7]{8}$`), o.TrackingCode)
	assert.Equal(t, order.StatusPending, o.Status)
	require.NotNil(t, o.CouponCode)
	assert.Equal(t, "SUMMER20", *o.CouponCode)
	assert.True(t, d("2000").Equal(o.Subtotal))
	assert.True(t, d("400").Equal(o.Discount))
	assert.True(t, d("2000").Equal(o.Total))

	require.Len(t, o.Items, 1)
	assert.Equal(t, "Kaftan", o.Items[0].Name)
	assert.Equal(t, "kaftan.jpg", o.Items[0].Image)
	assert.True(t, d("1000").Equal(o.Items[0].UnitPrice))

	assert.Equal(t, 1, f.usedCount(t, "SUMMER20"))
	assert.Equal(t, 8, f.stock(t, "p1"))

	stored, err := f.svc.Track(ctx, o.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
}

func TestCommit_WithoutCoupon(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Commit(context.Background(), checkout("", order.CartItem{ProductID: "p2", Quantity: 1}))
	require.NoError(t, err)
	assert.Nil(t, o.CouponCode)
	assert.True(t, o.Discount.IsZero())
}

func TestCommit_PriceSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.Commit(ctx, checkout("", order.CartItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	p, err := f.products.GetByID(ctx, "p1")
	require.NoError(t, err)
	p.Price = d("9999")
	p.Name = "Renamed"
	require.NoError(t, f.products.Update(ctx, p))

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kaftan", stored.Items[0].Name)
	assert.True(t, d("1000").Equal(stored.Items[0].UnitPrice))
	assert.True(t, o.Total.Equal(stored.Total))
}

func TestCommit_InvalidCustomer(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*order.Checkout)
	}{
		{name: "missing name", mutate: func(c *order.Checkout) { c.Customer.Name = " " }},
		{name: "missing phone", mutate: func(c *order.Checkout) { c.Customer.Phone = "" }},
		{name: "missing sub-region", mutate: func(c *order.Checkout) { c.Customer.SubRegion = "" }},
		{name: "foreign sub-region", mutate: func(c *order.Checkout) { c.Customer.SubRegion = "0101" }},
		{name: "home delivery without address", mutate: func(c *order.Checkout) { c.Customer.Address = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := checkout("", order.CartItem{ProductID: "p1", Quantity: 1})
			tt.mutate(&req)

			_, err := f.svc.Commit(context.Background(), req)
			require.ErrorIs(t, err, order.ErrInvalidCustomer)
		})
	}
}

func TestCommit_DeskDeliveryWithoutAddress(t *testing.T) {
	f := newFixture(t)
	req := checkout("", order.CartItem{ProductID: "p1", Quantity: 1})
	req.DeliveryMode = delivery.ModeDesk
	req.Customer.Address = ""

	o, err := f.svc.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, d("250").Equal(o.Shipping))
}

func TestCommit_InvalidCouponPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Commit(ctx, checkout("SUMMER20", order.CartItem{ProductID: "p2", Quantity: 1}))
	require.ErrorIs(t, err, coupon.ErrBelowMinimumOrder)

	orders, err := f.svc.List(ctx, order.Filter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 0, f.usedCount(t, "SUMMER20"))
	assert.Equal(t, 2, f.stock(t, "p2"))
}

type failingOrders struct {
	*memory.OrderRepository
}

func (failingOrders) Create(context.Context, *order.Order) error {
	return errors.New("disk full")
}

func TestCommit_PersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t, withOrders(failingOrders{memory.NewOrderRepository()}))

	_, err := f.svc.Commit(context.Background(), checkout("LAST", order.CartItem{ProductID: "p1", Quantity: 3}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, isRule := coupon.Reason(err)
	assert.False(t, isRule)
	assert.Equal(t, 4, f.usedCount(t, "LAST"), "redemption must roll back")
	assert.Equal(t, 10, f.stock(t, "p1"), "stock must roll back")
}

func TestCommit_ConcurrentLastRedemption(t *testing.T) {
	f := newFixture(t)
	const workers = 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Commit(context.Background(), checkout("LAST", order.CartItem{ProductID: "p1", Quantity: 1}))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failures = append(failures, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	require.Len(t, failures, workers-1)
	for _, err := range failures {
		assert.True(t,
			errors.Is(err, coupon.ErrConcurrentRedemptionConflict) || errors.Is(err, coupon.ErrExhaustedUses),
			"unexpected error: %v", err,
		)
	}
	assert.Equal(t, 5, f.usedCount(t, "LAST"))
	assert.Equal(t, 9, f.stock(t, "p1"))

	orders, err := f.svc.List(context.Background(), order.Filter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCommit_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := checkout("SUMMER20", order.CartItem{ProductID: "p1", Quantity: 1})
	req.IdempotencyKey = "7d1f0c2e"

	first, err := f.svc.Commit(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Commit(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.TrackingCode, second.TrackingCode)
	assert.Equal(t, 1, f.usedCount(t, "SUMMER20"))
	assert.Equal(t, 9, f.stock(t, "p1"))
}

func TestCommit_IdempotencyKeyInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, claimed, err := f.idem.Claim(ctx, "busy")
	require.NoError(t, err)
	require.True(t, claimed)

	req := checkout("", order.CartItem{ProductID: "p1", Quantity: 1})
	req.IdempotencyKey = "busy"

	_, err = f.svc.Commit(ctx, req)
	require.ErrorIs(t, err, order.ErrDuplicateSubmission)
}

func TestCommit_FailedAttemptReleasesKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := checkout("SUMMER20", order.CartItem{ProductID: "p2", Quantity: 1})
	req.IdempotencyKey = "retry-me"
	_, err := f.svc.Commit(ctx, req)
	require.ErrorIs(t, err, coupon.ErrBelowMinimumOrder)

	req.CouponCode = ""
	o, err := f.svc.Commit(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, o.TrackingCode)
}

func TestTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.Commit(ctx, checkout("", order.CartItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	got, err := f.svc.Track(ctx, "  "+o.TrackingCode[:4]+strings.ToLower(o.TrackingCode[4:])+" ")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.Track(ctx, "ORD-")
	require.ErrorIs(t, err, order.ErrNotFound)

	_, err = f.svc.Track(ctx, "ORD-ZZZZZZZZ")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.Commit(ctx, checkout("", order.CartItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	o, err = f.svc.Advance(ctx, o.ID, order.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)

	_, err = f.svc.Advance(ctx, o.ID, order.StatusPending)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	_, err = f.svc.Advance(ctx, o.ID, order.StatusConfirmed)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	o, err = f.svc.Advance(ctx, o.ID, order.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, o.Status)

	_, err = f.svc.Advance(ctx, o.ID, "lost")
	require.ErrorIs(t, err, order.ErrInvalidStatus)

	_, err = f.svc.Advance(ctx, "missing", order.StatusShipped)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestCorrect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.Commit(ctx, checkout("", order.CartItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, o.ID, order.StatusShipped)
	require.NoError(t, err)

	_, err = f.svc.Correct(ctx, o.ID, order.StatusConfirmed, "  ")
	require.ErrorIs(t, err, order.ErrReasonRequired)

	_, err = f.svc.Correct(ctx, o.ID, order.StatusShipped, "no-op")
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	corrected, err := f.svc.Correct(ctx, o.ID, order.StatusConfirmed, "courier returned parcel")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, corrected.Status)

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, stored.Status)
}

func TestList_FiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Commit(ctx, checkout("", order.CartItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.Commit(ctx, checkout("", order.CartItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, first.ID, order.StatusShipped)
	require.NoError(t, err)

	shipped, err := f.svc.List(ctx, order.Filter{Status: order.StatusShipped})
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, first.ID, shipped[0].ID)

	all, err := f.svc.List(ctx, order.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestValidateCoupon_DoesNotRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		res, err := f.svc.ValidateCoupon(ctx, "LAST", d("100"))
		require.NoError(t, err)
		assert.True(t, d("100").Equal(res.Discount))
	}
	assert.Equal(t, 4, f.usedCount(t, "LAST"))
}
