// Package memory implements the storefront repositories in process memory.
//
// Writes made inside TxManager.Do are rolled back when the callback fails.
// Transactions are serialized; readers outside a transaction may observe
// writes of a transaction that later rolls back.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/storefront/internal/domain/order"
)

type journalKey struct{}

type journal struct {
	undo []func()
}

// onRollback registers fn to run if the surrounding transaction fails.
func onRollback(ctx context.Context, fn func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, fn)
	}
}

// TxManager implements order.TxManager.
type TxManager struct {
	mu sync.Mutex
}

var _ order.TxManager = (*TxManager)(nil)

// NewTxManager returns a TxManager.
func NewTxManager() *TxManager {
	return &TxManager{}
}

// Do runs fn. Nested calls join the outer transaction.
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}
