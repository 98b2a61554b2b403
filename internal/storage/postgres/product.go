package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, stock, category, images, featured, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE ($1::text = '' OR category = $1) AND (NOT $2::boolean OR featured)
		ORDER BY created_at DESC, id
		LIMIT $3`

	getProductByIDSQL   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateProductSQL = `UPDATE products SET name = $2, description = $3, price = $4, stock = $5,
		category = $6, images = $7, featured = $8, updated_at = $9
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns catalog products newest first.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := conn(ctx, r.pool).Query(ctx, listProductsSQL, f.Category, f.FeaturedOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category,
		images(p.Images), p.Featured, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category,
		images(p.Images), p.Featured, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// DecrementStock subtracts qty in a single conditional update.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	q := conn(ctx, r.pool)

	tag, err := q.Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock of %q: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, productExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking product %q: %w", id, err)
	}
	if !exists {
		return product.ErrNotFound
	}
	return product.ErrInsufficientStock
}

// images keeps a nil slice from being written as NULL.
func images(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category,
		&p.Images, &p.Featured, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
