package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/order"
)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	mu         sync.RWMutex
	byID       map[string]*order.Order
	byTracking map[string]string
}

var _ order.Repository = (*OrderRepository)(nil)

// NewOrderRepository returns an empty OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		byID:       make(map[string]*order.Order),
		byTracking: make(map[string]string),
	}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byID[o.ID]; dup {
		return errors.Errorf("order %q already exists", o.ID)
	}
	if _, dup := r.byTracking[o.TrackingCode]; dup {
		return errors.Errorf("tracking code %q already exists", o.TrackingCode)
	}
	r.byID[o.ID] = cloneOrder(o)
	r.byTracking[o.TrackingCode] = o.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byID, o.ID)
		delete(r.byTracking, o.TrackingCode)
	})
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) GetByTrackingCode(_ context.Context, code string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTracking[code]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(r.byID[id]), nil
}

func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]order.Order, 0, len(r.byID))
	for _, o := range r.byID {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrStatusConflict
	}
	prevAt := o.UpdatedAt
	o.Status = to
	o.UpdatedAt = at
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		o.Status = from
		o.UpdatedAt = prevAt
	})
	return nil
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	if o.CouponCode != nil {
		code := *o.CouponCode
		cp.CouponCode = &code
	}
	return &cp
}
