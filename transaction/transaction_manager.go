package transaction

import (
	"sync"

	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/storage"
)

// TransactionManager issues TransactionIDs and drives commit/abort through
// the BufferPool and LockManager. It holds no locking state itself — that
// all lives in LockManager — and exists only to give callers a small
// lifecycle API instead of requiring every caller to remember to call
// BufferPool.TransactionComplete directly.
type TransactionManager struct {
	mu        sync.Mutex
	nextTxnID common.TransactionID

	bufferPool *storage.BufferPool
}

// NewTransactionManager constructs a TransactionManager over the given
// buffer pool. Its LockManager is reached transitively through bufferPool.
func NewTransactionManager(bufferPool *storage.BufferPool) *TransactionManager {
	return &TransactionManager{
		nextTxnID:  1,
		bufferPool: bufferPool,
	}
}

// Begin allocates a fresh, monotonically increasing TransactionID.
func (tm *TransactionManager) Begin() common.TransactionID {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tid := tm.nextTxnID
	tm.nextTxnID++
	return tid
}

// Commit flushes every page tid holds dirty and releases its locks.
func (tm *TransactionManager) Commit(tid common.TransactionID) error {
	return tm.bufferPool.TransactionComplete(tid, true)
}

// Abort discards every page tid holds dirty (restoring on-disk state under
// NO-STEAL) and releases its locks.
func (tm *TransactionManager) Abort(tid common.TransactionID) error {
	return tm.bufferPool.TransactionComplete(tid, false)
}
