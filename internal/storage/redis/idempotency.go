package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/domain/order"
)

const idempotencyScope = "idempotency"

// pending marks a claimed key whose checkout has not finished yet.
const pending = ""

// IdempotencyStore implements order.IdempotencyStore. Keys expire after
// the configured TTL.
type IdempotencyStore struct {
	client cmdable
	ttl    time.Duration
}

var _ order.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore returns a store keeping keys for ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Claim(ctx context.Context, id string) (string, bool, error) {
	k := key(idempotencyScope, id)

	ok, err := s.client.SetNX(ctx, k, pending, s.ttl).Result()
	if err != nil {
		return "", false, errors.Wrap(err, "claim idempotency key")
	}
	if ok {
		return "", true, nil
	}

	code, err := s.client.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired between the two calls; treat as still in flight.
		return "", false, order.ErrDuplicateSubmission
	case err != nil:
		return "", false, errors.Wrap(err, "read idempotency key")
	case code == pending:
		return "", false, order.ErrDuplicateSubmission
	default:
		return code, false, nil
	}
}

func (s *IdempotencyStore) Complete(ctx context.Context, id, trackingCode string) error {
	if err := s.client.Set(ctx, key(idempotencyScope, id), trackingCode, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "complete idempotency key")
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(idempotencyScope, id)).Err(); err != nil {
		return errors.Wrap(err, "release idempotency key")
	}
	return nil
}
