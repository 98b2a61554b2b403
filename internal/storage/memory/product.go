package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/xenking/storefront/internal/domain/product"
)

// ProductRepository implements product.Repository.
type ProductRepository struct {
	mu   sync.RWMutex
	byID map[string]*product.Product
}

var _ product.Repository = (*ProductRepository)(nil)

// NewProductRepository returns a repository seeded with products.
func NewProductRepository(products ...product.Product) *ProductRepository {
	r := &ProductRepository{byID: make(map[string]*product.Product, len(products))}
	for i := range products {
		p := cloneProduct(&products[i])
		r.byID[p.ID] = p
	}
	return r
}

// List returns products newest first.
func (r *ProductRepository) List(_ context.Context, f product.Filter) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]product.Product, 0, len(r.byID))
	for _, p := range r.byID {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.FeaturedOnly && !p.Featured {
			continue
		}
		out = append(out, *cloneProduct(p))
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

func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return cloneProduct(p), nil
}

// GetByIDs returns the products that exist, skipping unknown ids.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.byID[id]; ok {
			out = append(out, *cloneProduct(p))
		}
	}
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[p.ID] = cloneProduct(p)
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byID, p.ID)
	})
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[p.ID]
	if !ok {
		return product.ErrNotFound
	}
	r.byID[p.ID] = cloneProduct(p)
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byID[p.ID] = prev
	})
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	delete(r.byID, id)
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byID[id] = prev
	})
	return nil
}

func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock < qty {
		return product.ErrInsufficientStock
	}
	p.Stock -= qty
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		p.Stock += qty
	})
	return nil
}

func cloneProduct(p *product.Product) *product.Product {
	cp := *p
	cp.Images = slices.Clone(p.Images)
	return &cp
}
