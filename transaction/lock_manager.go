package transaction

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dsg-courses/heapdb/common"
)

// pageLock is the shared/exclusive lock state for a single page: the set of
// transactions currently holding it in shared mode, the transaction (if
// any) holding it exclusively, and a condition variable any request on
// this page blocks on.
type pageLock struct {
	cond      *sync.Cond
	sharedBy  map[common.TransactionID]bool
	exclusive common.TransactionID // InvalidTransactionID if unheld
}

func newPageLock(mu *sync.Mutex) *pageLock {
	return &pageLock{
		cond:     sync.NewCond(mu),
		sharedBy: make(map[common.TransactionID]bool),
	}
}

// LockManager grants page-granular shared/exclusive locks under strict
// two-phase locking, detecting deadlock via a waits-for graph searched on
// every blocking request.
//
// A single mutex guards both the per-page lock table and the waits-for
// graph; it is never held across the blocking sync.Cond.Wait, so other
// transactions can make progress (release locks, populate the graph) while
// one request is parked.
type LockManager struct {
	mu sync.Mutex

	// locks is the concurrent PageID -> pageLock table, with pageLocks
	// installed on first request by lockFor. Every method below still takes
	// mu, and every pageLock's own cond shares mu, since AcquireRead/
	// AcquireWrite need waitsFor's cross-transaction cycle check and the
	// blocking Wait to be atomic with respect to each other.
	locks *xsync.MapOf[common.PageID, *pageLock]
	held  map[common.TransactionID]map[common.PageID]bool

	// waitsFor[t] is the set of transactions t is currently blocked behind.
	// An edge exists only while a request for t is actually parked in
	// AcquireRead/AcquireWrite below.
	waitsFor map[common.TransactionID]map[common.TransactionID]bool
}

// NewLockManager constructs an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks:    xsync.NewMapOf[common.PageID, *pageLock](),
		held:     make(map[common.TransactionID]map[common.PageID]bool),
		waitsFor: make(map[common.TransactionID]map[common.TransactionID]bool),
	}
}

// lockFor returns pid's pageLock, installing a fresh one on first request.
// LoadOrStore makes the install racy-safe without needing lm.mu: if two
// callers lose the race to create the same page's lock simultaneously, only
// one of the two freshly allocated pageLocks survives.
func (lm *LockManager) lockFor(pid common.PageID) *pageLock {
	if l, ok := lm.locks.Load(pid); ok {
		return l
	}
	l := newPageLock(&lm.mu)
	actual, _ := lm.locks.LoadOrStore(pid, l)
	return actual
}

func (lm *LockManager) markHeld(tid common.TransactionID, pid common.PageID) {
	pages, ok := lm.held[tid]
	if !ok {
		pages = make(map[common.PageID]bool)
		lm.held[tid] = pages
	}
	pages[pid] = true
}

// addWaitsFor records that waiter is blocked behind every current holder of
// l, then runs deadlock detection from waiter. On a detected cycle it
// removes waiter's outgoing edges and returns a TxnAbortedError; the caller
// must not block in that case.
func (lm *LockManager) addWaitsFor(waiter common.TransactionID, l *pageLock) error {
	// Rebuilt from scratch on each call: the set of current holders can
	// change between wakeups, and a stale edge from a holder that already
	// released would otherwise linger and produce a false cycle.
	edges := make(map[common.TransactionID]bool)
	lm.waitsFor[waiter] = edges
	for holder := range l.sharedBy {
		if holder != waiter {
			edges[holder] = true
		}
	}
	if l.exclusive != common.InvalidTransactionID && l.exclusive != waiter {
		edges[l.exclusive] = true
	}

	if lm.hasCycle(waiter) {
		delete(lm.waitsFor, waiter)
		return common.NewTxnAbortedError("deadlock detected: transaction %d would wait on a cycle", waiter)
	}
	return nil
}

// hasCycle runs a BFS over the waits-for graph starting at start, returning
// true if start is reachable from one of its own successors (i.e. the
// graph has a cycle through start).
func (lm *LockManager) hasCycle(start common.TransactionID) bool {
	visited := make(map[common.TransactionID]bool)
	queue := []common.TransactionID{start}
	visited[start] = true

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range lm.waitsFor[cur] {
			if next == start {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func (lm *LockManager) clearWaitsFor(tid common.TransactionID) {
	delete(lm.waitsFor, tid)
}

// AcquireRead grants tid a shared lock on pid, blocking while another
// transaction holds it exclusively. Returns immediately if tid already
// holds the page in any mode.
func (lm *LockManager) AcquireRead(tid common.TransactionID, pid common.PageID) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	l := lm.lockFor(pid)
	if l.sharedBy[tid] || l.exclusive == tid {
		return nil
	}

	for l.exclusive != common.InvalidTransactionID && l.exclusive != tid {
		if err := lm.addWaitsFor(tid, l); err != nil {
			return err
		}
		l.cond.Wait()
	}
	lm.clearWaitsFor(tid)

	l.sharedBy[tid] = true
	lm.markHeld(tid, pid)
	return nil
}

// AcquireWrite grants tid an exclusive lock on pid. If tid is the sole
// shared holder it upgrades in place; otherwise it blocks behind any other
// holder before becoming exclusive.
func (lm *LockManager) AcquireWrite(tid common.TransactionID, pid common.PageID) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	l := lm.lockFor(pid)
	if l.exclusive == tid {
		return nil
	}

	for {
		othersHoldShared := len(l.sharedBy) > 0 && !(len(l.sharedBy) == 1 && l.sharedBy[tid])
		othersHoldExclusive := l.exclusive != common.InvalidTransactionID && l.exclusive != tid
		if !othersHoldShared && !othersHoldExclusive {
			break
		}
		if err := lm.addWaitsFor(tid, l); err != nil {
			return err
		}
		l.cond.Wait()
	}
	lm.clearWaitsFor(tid)

	delete(l.sharedBy, tid)
	l.exclusive = tid
	lm.markHeld(tid, pid)
	return nil
}

// Release drops tid's lock (of either mode) on pid and wakes every
// transaction waiting on that page.
func (lm *LockManager) Release(tid common.TransactionID, pid common.PageID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.releaseLocked(tid, pid)
}

func (lm *LockManager) releaseLocked(tid common.TransactionID, pid common.PageID) {
	l, ok := lm.locks.Load(pid)
	if !ok {
		return
	}
	delete(l.sharedBy, tid)
	if l.exclusive == tid {
		l.exclusive = common.InvalidTransactionID
	}
	if pages, ok := lm.held[tid]; ok {
		delete(pages, pid)
		if len(pages) == 0 {
			delete(lm.held, tid)
		}
	}
	l.cond.Broadcast()
}

// ReleaseAll releases every page tid currently holds, e.g. on commit or
// abort.
func (lm *LockManager) ReleaseAll(tid common.TransactionID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for pid := range lm.held[tid] {
		lm.releaseLocked(tid, pid)
	}
}

// Holds reports whether tid currently holds pid in any mode.
func (lm *LockManager) Holds(tid common.TransactionID, pid common.PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	l, ok := lm.locks.Load(pid)
	if !ok {
		return false
	}
	return l.sharedBy[tid] || l.exclusive == tid
}

// PagesHeldBy returns every page tid currently holds a lock on.
func (lm *LockManager) PagesHeldBy(tid common.TransactionID) []common.PageID {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	pages := make([]common.PageID, 0, len(lm.held[tid]))
	for pid := range lm.held[tid] {
		pages = append(pages, pid)
	}
	return pages
}
