package postgres

import (
	"context"
	"fmt"

	"stockledger/internal/core/tx"
)

var _ tx.Locker = (*AdvisoryLocker)(nil)

// AdvisoryLocker implements tx.Locker with transaction-scoped advisory locks.
// The lock is released by PostgreSQL when the surrounding transaction ends,
// so the returned release func is a no-op.
type AdvisoryLocker struct {
	txManager *TxManager
}

// NewAdvisoryLocker creates a locker bound to txManager.
func NewAdvisoryLocker(txManager *TxManager) *AdvisoryLocker {
	return &AdvisoryLocker{txManager: txManager}
}

// TryLock takes pg_try_advisory_xact_lock on the hash of key.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	t := l.txManager.GetTx(ctx)
	if t == nil {
		return nil, false, fmt.Errorf("advisory lock %q requires transaction context", key)
	}
	var ok bool
	if err := t.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock(hashtextextended($1, 0))", key).Scan(&ok); err != nil {
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {}, true, nil
}
