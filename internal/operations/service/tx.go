package service

import (
	"context"
	"sync"
	"time"

	dErrors "flightsurety/pkg/domain-errors"
)

// defaultTxTimeout bounds how long a call may wait for the ledger lock.
const defaultTxTimeout = 5 * time.Second

// ledgerTx serialises mutations over the whole ledger state. One coarse lock
// keeps vote quorum, status-triggered multipliers and balance moves inside a
// single critical section with the mutation that causes them.
type ledgerTx struct {
	mu      sync.RWMutex
	timeout time.Duration
}

func newLedgerTx(timeout time.Duration) *ledgerTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &ledgerTx{timeout: timeout}
}

// RunInTx runs fn while holding the write lock. fn must validate everything
// before it mutates anything.
func (t *ledgerTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// view runs a read under the shared lock.
func (t *ledgerTx) view(fn func()) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn()
}
