package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/storefront/internal/domain/coupon"
)

// CouponRepository implements coupon.Repository.
type CouponRepository struct {
	mu     sync.RWMutex
	byCode map[string]*coupon.Coupon
}

var _ coupon.Repository = (*CouponRepository)(nil)

// NewCouponRepository returns a repository seeded with coupons.
func NewCouponRepository(coupons ...coupon.Coupon) *CouponRepository {
	r := &CouponRepository{byCode: make(map[string]*coupon.Coupon, len(coupons))}
	for i := range coupons {
		c := clone(&coupons[i])
		r.byCode[c.Code] = c
	}
	return r
}

func (r *CouponRepository) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byCode[coupon.NormalizeCode(code)]
	if !ok {
		return nil, coupon.ErrCodeNotFound
	}
	return clone(c), nil
}

func (r *CouponRepository) GetByID(_ context.Context, id string) (*coupon.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c := r.findID(id); c != nil {
		return clone(c), nil
	}
	return nil, coupon.ErrNotFound
}

// List returns coupons newest first.
func (r *CouponRepository) List(_ context.Context) ([]coupon.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]coupon.Coupon, 0, len(r.byCode))
	for _, c := range r.byCode {
		out = append(out, *clone(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byCode[c.Code]; dup {
		return coupon.ErrDuplicateCode
	}
	r.byCode[c.Code] = clone(c)
	onRollback(ctx, func() { r.remove(c.Code) })
	return nil
}

func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.findID(c.ID)
	if prev == nil {
		return coupon.ErrNotFound
	}
	if other, ok := r.byCode[c.Code]; ok && other.ID != c.ID {
		return coupon.ErrDuplicateCode
	}
	delete(r.byCode, prev.Code)
	next := clone(c)
	// Updates never touch the redemption counter.
	next.UsedCount = prev.UsedCount
	r.byCode[next.Code] = next
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byCode, next.Code)
		r.byCode[prev.Code] = prev
	})
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.findID(id)
	if c == nil {
		return coupon.ErrNotFound
	}
	delete(r.byCode, c.Code)
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byCode[c.Code] = c
	})
	return nil
}

// Redeem performs the compare-and-increment under the repository lock.
func (r *CouponRepository) Redeem(ctx context.Context, code string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byCode[coupon.NormalizeCode(code)]
	if !ok || !c.Active || c.Exhausted() {
		return 0, coupon.ErrConcurrentRedemptionConflict
	}
	c.UsedCount++
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		c.UsedCount--
	})
	return c.UsedCount, nil
}

func (r *CouponRepository) remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byCode, code)
}

func (r *CouponRepository) findID(id string) *coupon.Coupon {
	for _, c := range r.byCode {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func clone(c *coupon.Coupon) *coupon.Coupon {
	cp := *c
	if c.MaxUses != nil {
		v := *c.MaxUses
		cp.MaxUses = &v
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
