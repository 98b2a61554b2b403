package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, key_hash, name, scopes FROM api_keys
		WHERE key_hash = $1 AND is_active = TRUE`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name, scopes = EXCLUDED.scopes, is_active = TRUE`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
// Returns auth.ErrKeyNotFound when no matching key exists.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var k auth.APIKeyInfo
	err := conn(ctx, r.pool).QueryRow(ctx, getAPIKeyByHashSQL, hash).
		Scan(&k.ID, &k.KeyHash, &k.Name, &k.Scopes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &k, nil
}

// Upsert stores k, reactivating an existing key with the same hash.
func (r *APIKeyRepository) Upsert(ctx context.Context, k auth.APIKeyInfo) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, upsertAPIKeySQL, k.ID, k.KeyHash, k.Name, k.Scopes); err != nil {
		return fmt.Errorf("upserting api key %q: %w", k.Name, err)
	}
	return nil
}
