package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, tracking_code, customer_name, customer_phone, customer_email,
		region, sub_region, address, items, subtotal, discount, shipping, total,
		coupon_code, delivery_mode, status, notes, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	getOrderByIDSQL       = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByTrackingSQL = `SELECT ` + orderColumns + ` FROM orders WHERE tracking_code = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2`

	// Compare-and-set on the status guards against two admins racing.
	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The line items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	c := o.Customer
	_, err = conn(ctx, r.pool).Exec(ctx, insertOrderSQL,
		o.ID, o.TrackingCode, c.Name, c.Phone, c.Email,
		c.Region, c.SubRegion, c.Address, itemsJSON,
		o.Subtotal, o.Discount, o.Shipping, o.Total,
		o.CouponCode, string(o.DeliveryMode), string(o.Status), o.Notes,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, getOrderByIDSQL, id)
}

func (r *OrderRepository) GetByTrackingCode(ctx context.Context, code string) (*order.Order, error) {
	return r.one(ctx, getOrderByTrackingSQL, code)
}

func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersSQL, string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, at time.Time) error {
	q := conn(ctx, r.pool)

	tag, err := q.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrStatusConflict
}

func (r *OrderRepository) one(ctx context.Context, sql string, arg string) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		mode      string
		status    string
	)
	c := &o.Customer
	err := row.Scan(
		&o.ID, &o.TrackingCode, &c.Name, &c.Phone, &c.Email,
		&c.Region, &c.SubRegion, &c.Address, &itemsJSON,
		&o.Subtotal, &o.Discount, &o.Shipping, &o.Total,
		&o.CouponCode, &mode, &status, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	o.DeliveryMode = delivery.Mode(mode)
	o.Status = order.Status(status)
	return o, nil
}
