package memory

import (
	"context"
	"sync"

	"github.com/xenking/storefront/internal/domain/order"
)

// IdempotencyStore implements order.IdempotencyStore. Entries never expire.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]string
}

var _ order.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore returns an empty store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{entries: make(map[string]string)}
}

func (s *IdempotencyStore) Claim(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.entries[key]
	switch {
	case !ok:
		s.entries[key] = ""
		return "", true, nil
	case code == "":
		return "", false, order.ErrDuplicateSubmission
	default:
		return code, false, nil
	}
}

func (s *IdempotencyStore) Complete(_ context.Context, key, trackingCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = trackingCode
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
