package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/memory"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadProducts_RepoFile(t *testing.T) {
	products, err := loadProducts(filepath.Join("..", "..", "db", "seed", "products.json"))
	require.NoError(t, err)
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.NotEmpty(t, p.ID)
		assert.False(t, p.Price.IsNegative(), p.ID)
	}
}

func TestLoadProducts_Invalid(t *testing.T) {
	_, err := loadProducts(writeFile(t, `[{"id":"x","name":"","price":"10"}]`))
	require.ErrorIs(t, err, product.ErrInvalidProduct)

	_, err = loadProducts(writeFile(t, `[{"name":"No id","price":"10"}]`))
	require.Error(t, err)

	_, err = loadProducts(writeFile(t, `{`))
	require.Error(t, err)
}

func TestSeedProducts_Upserts(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository(product.Product{ID: "kaftan", Name: "Old name", Price: decimal.NewFromInt(1)})
	path := writeFile(t, `[
		{"id":"kaftan","name":"Kaftan","price":"8500","stock":4,"images":["kaftan.jpg"]},
		{"id":"scarf","name":"Scarf","price":"1200.50","stock":10}
	]`)

	require.NoError(t, seedProducts(ctx, zap.NewNop(), repo, path))
	require.NoError(t, seedProducts(ctx, zap.NewNop(), repo, path))

	p, err := repo.GetByID(ctx, "kaftan")
	require.NoError(t, err)
	assert.Equal(t, "Kaftan", p.Name)
	assert.Equal(t, 4, p.Stock)

	all, err := repo.List(ctx, product.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSeedCoupons_KeepsExisting(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCouponRepository(coupon.Coupon{ID: "c1", Code: "WELCOME10", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(10), UsedCount: 7, Active: true})

	require.NoError(t, seedCoupons(ctx, zap.NewNop(), repo))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(sampleCoupons))

	c, err := repo.FindByCode(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, 7, c.UsedCount)
}
