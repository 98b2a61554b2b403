package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/memory"
)

type countingRepo struct {
	product.Repository
	lists, gets int
}

func (c *countingRepo) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	c.lists++
	return c.Repository.List(ctx, f)
}

func (c *countingRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	c.gets++
	return c.Repository.GetByID(ctx, id)
}

func newRepo() (*ProductRepository, *countingRepo) {
	inner := &countingRepo{Repository: memory.NewProductRepository(
		product.Product{ID: "p1", Name: "Kaftan", Price: decimal.NewFromInt(1000), Stock: 3, Images: []string{"a.jpg"}},
	)}
	return NewProductRepository(inner, time.Minute), inner
}

func TestProductRepository_CachesReads(t *testing.T) {
	ctx := context.Background()
	repo, inner := newRepo()

	for range 3 {
		_, err := repo.List(ctx, product.Filter{})
		require.NoError(t, err)
		_, err = repo.GetByID(ctx, "p1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.lists)
	assert.Equal(t, 1, inner.gets)

	_, err := repo.List(ctx, product.Filter{Category: "other"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.lists)
}

func TestProductRepository_WriteFlushes(t *testing.T) {
	ctx := context.Background()
	repo, inner := newRepo()

	_, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, repo.DecrementStock(ctx, "p1", 1))

	p, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, 2, inner.gets)
}

func TestProductRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo()

	p, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	p.Images[0] = "mutated.jpg"
	p.Name = "mutated"

	again, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Kaftan", again.Name)
	assert.Equal(t, []string{"a.jpg"}, again.Images)
}

func TestProductRepository_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	repo, inner := newRepo()

	for range 2 {
		_, err := repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, product.ErrNotFound)
	}
	assert.Equal(t, 2, inner.gets)
}
