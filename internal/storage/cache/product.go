// Package cache decorates catalog reads with an in-process TTL cache.
package cache

import (
	"context"
	"fmt"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/xenking/storefront/internal/domain/product"
)

// ProductRepository caches List and GetByID of the wrapped repository.
// Any write flushes the whole cache. GetByIDs always reads through so that
// checkout sees current prices and stock.
type ProductRepository struct {
	product.Repository
	store *gocache.Cache
}

var _ product.Repository = (*ProductRepository)(nil)

// NewProductRepository wraps next with a cache holding entries for ttl.
func NewProductRepository(next product.Repository, ttl time.Duration) *ProductRepository {
	return &ProductRepository{
		Repository: next,
		store:      gocache.New(ttl, 2*ttl),
	}
}

func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	k := fmt.Sprintf("list:%s:%t:%d", f.Category, f.FeaturedOnly, f.Limit)
	if v, ok := r.store.Get(k); ok {
		return cloneAll(v.([]product.Product)), nil
	}

	products, err := r.Repository.List(ctx, f)
	if err != nil {
		return nil, err
	}
	r.store.SetDefault(k, cloneAll(products))
	return products, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	k := "id:" + id
	if v, ok := r.store.Get(k); ok {
		p := clone(v.(product.Product))
		return &p, nil
	}

	p, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store.SetDefault(k, clone(*p))
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	defer r.store.Flush()
	return r.Repository.Create(ctx, p)
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	defer r.store.Flush()
	return r.Repository.Update(ctx, p)
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	defer r.store.Flush()
	return r.Repository.Delete(ctx, id)
}

func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	defer r.store.Flush()
	return r.Repository.DecrementStock(ctx, id, qty)
}

func clone(p product.Product) product.Product {
	p.Images = slices.Clone(p.Images)
	return p
}

func cloneAll(ps []product.Product) []product.Product {
	out := make([]product.Product, len(ps))
	for i, p := range ps {
		out[i] = clone(p)
	}
	return out
}
