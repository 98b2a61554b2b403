package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	couponColumns = `id, code, kind, value, min_order, max_uses, used_count, is_active, expires_at, created_at, updated_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	getCouponByIDSQL   = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	listCouponsSQL     = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC, id`

	insertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateCouponSQL = `UPDATE coupons SET code = $2, kind = $3, value = $4, min_order = $5,
		max_uses = $6, is_active = $7, expires_at = $8, updated_at = $9
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	// The cap check and the increment happen in one statement, so two
	// concurrent redemptions of the last use cannot both succeed.
	redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		WHERE code = $1 AND is_active
		AND (max_uses IS NULL OR max_uses <= 0 OR used_count < max_uses)
		RETURNING used_count`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its normalized code.
// Returns coupon.ErrCodeNotFound when no coupon has the code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	code = coupon.NormalizeCode(code)
	c, err := r.one(ctx, getCouponByCodeSQL, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coupon.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return c, nil
}

func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	c, err := r.one(ctx, getCouponByIDSQL, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coupon.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}
	return c, nil
}

func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertCouponSQL,
		c.ID, c.Code, string(c.Kind), c.Value, c.MinOrder, c.MaxUses,
		c.UsedCount, c.Active, c.ExpiresAt, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return coupon.ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update writes the editable fields. The used count is owned by Redeem and
// is never overwritten here.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateCouponSQL,
		c.ID, c.Code, string(c.Kind), c.Value, c.MinOrder, c.MaxUses,
		c.Active, c.ExpiresAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return coupon.ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Redeem consumes one use of the coupon. It returns
// coupon.ErrConcurrentRedemptionConflict when the coupon is inactive,
// missing or already at its cap.
func (r *CouponRepository) Redeem(ctx context.Context, code string) (int, error) {
	code = coupon.NormalizeCode(code)

	var used int
	err := conn(ctx, r.pool).QueryRow(ctx, redeemCouponSQL, code).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, coupon.ErrConcurrentRedemptionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	return used, nil
}

func (r *CouponRepository) one(ctx context.Context, sql string, arg any) (*coupon.Coupon, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c    coupon.Coupon
		kind string
	)
	err := row.Scan(
		&c.ID, &c.Code, &kind, &c.Value, &c.MinOrder, &c.MaxUses,
		&c.UsedCount, &c.Active, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Kind = coupon.Kind(kind)
	return c, err
}
