package storage

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/logging"
)

// PageLocker is the narrow view of a LockManager that BufferPool depends
// on. It lives here, rather than BufferPool importing the transaction
// package directly, so that storage has no dependency on transaction (which
// itself depends on storage for TransactionManager) — the concrete
// *transaction.LockManager is wired in by whichever package constructs the
// Database handle.
type PageLocker interface {
	AcquireRead(tid common.TransactionID, pid common.PageID) error
	AcquireWrite(tid common.TransactionID, pid common.PageID) error
	Release(tid common.TransactionID, pid common.PageID)
	ReleaseAll(tid common.TransactionID)
	PagesHeldBy(tid common.TransactionID) []common.PageID
}

// TableSource is the narrow view of a Catalog that BufferPool depends on:
// resolve a table id to the HeapFile backing it. Defined here for the same
// reason as PageLocker — catalog already imports storage, so storage must
// not import catalog back.
type TableSource interface {
	HeapFile(tableID common.TableID) (*HeapFile, error)
}

// BufferPool is the bounded PageID -> PageFrame cache every tuple access in
// the system flows through. It enforces locking (via PageLocker) before
// handing out a page, and NO-STEAL/FORCE-on-commit discipline around
// eviction and transactionComplete.
type BufferPool struct {
	mu       sync.Mutex
	capacity int
	// pages is the concurrent PageID -> PageFrame table. GetPage, FlushPage
	// and TransactionComplete still take bp.mu around their lookups, so that
	// a cache hit's move in the recency order and an eviction decision stay
	// atomic with respect to pages.
	pages *xsync.MapOf[common.PageID, *PageFrame]
	// order records pages in access order, oldest first. A cache hit moves
	// its page to the back; eviction scans from the back (most recently
	// touched clean page first), matching the source's "prefer later
	// entries" policy among clean pages. len(order) is also this pool's
	// count of cached pages, since every pages.Store is paired with exactly
	// one append here and every pages.Delete with exactly one removal.
	order []common.PageID

	locker PageLocker
	tables TableSource
	log    logging.LogManager
}

// NewBufferPool constructs an empty BufferPool of the given capacity, wired
// to locker for lock acquisition, tables to resolve table ids to HeapFiles,
// and log for the WAL discipline flushPage depends on.
func NewBufferPool(capacity int, locker PageLocker, tables TableSource, log logging.LogManager) *BufferPool {
	return &BufferPool{
		capacity: capacity,
		pages:    xsync.NewMapOf[common.PageID, *PageFrame](),
		locker:   locker,
		tables:   tables,
		log:      log,
	}
}

// GetPage acquires the page lock in perm mode, then returns the cached
// frame for pid, reading it from its HeapFile and installing it (evicting a
// clean page if the pool is at capacity) on a cache miss.
func (bp *BufferPool) GetPage(tid common.TransactionID, pid common.PageID, perm common.Permissions) (*PageFrame, error) {
	switch perm {
	case common.ReadOnly:
		if err := bp.locker.AcquireRead(tid, pid); err != nil {
			return nil, err
		}
	case common.ReadWrite:
		if err := bp.locker.AcquireWrite(tid, pid); err != nil {
			return nil, err
		}
	default:
		return nil, common.NewLogicError("invalid permission %v", perm)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frame, ok := bp.pages.Load(pid); ok {
		bp.touchLocked(pid)
		if perm == common.ReadWrite {
			frame.CaptureBeforeImage()
		}
		return frame, nil
	}

	hf, err := bp.tables.HeapFile(pid.TableID)
	if err != nil {
		return nil, err
	}
	frame := NewPageFrame(pid)
	if err := hf.ReadPage(pid.PageNumber, frame); err != nil {
		return nil, err
	}
	if err := bp.installLocked(pid, frame); err != nil {
		return nil, err
	}
	if perm == common.ReadWrite {
		frame.CaptureBeforeImage()
	}
	return frame, nil
}

// touchLocked moves pid to the back of the recency order. Callers hold bp.mu.
func (bp *BufferPool) touchLocked(pid common.PageID) {
	for i, id := range bp.order {
		if id == pid {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			break
		}
	}
	bp.order = append(bp.order, pid)
}

// installLocked adds frame under pid, evicting a clean page first if the
// pool is already at capacity. Callers hold bp.mu.
func (bp *BufferPool) installLocked(pid common.PageID, frame *PageFrame) error {
	if len(bp.order) >= bp.capacity {
		if err := bp.evictOneLocked(); err != nil {
			return err
		}
	}
	bp.pages.Store(pid, frame)
	bp.order = append(bp.order, pid)
	return nil
}

// evictOneLocked removes the most recently touched clean page, scanning
// back to front per the source's MRU-among-cleans preference. Fails with
// LogicError if every cached page is dirty: under NO-STEAL there is nothing
// it can legally discard.
func (bp *BufferPool) evictOneLocked() error {
	for i := len(bp.order) - 1; i >= 0; i-- {
		pid := bp.order[i]
		frame, ok := bp.pages.Load(pid)
		if ok && !frame.IsDirty() {
			bp.pages.Delete(pid)
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			return nil
		}
	}
	return common.NewLogicError("no evictable page")
}

// InsertTuple delegates to tableID's HeapFile via hf.InsertTuple, then
// marks the returned page dirty by tid and installs/replaces it in the
// cache.
func (bp *BufferPool) InsertTuple(tid common.TransactionID, tableID common.TableID, t *Tuple) error {
	hf, err := bp.tables.HeapFile(tableID)
	if err != nil {
		return err
	}
	frame, err := hf.InsertTuple(tid, bp, t)
	if err != nil {
		return err
	}
	bp.adoptDirtyFrame(frame, tid)
	return nil
}

// DeleteTuple delegates to t's table's HeapFile via hf.DeleteTuple, then
// marks the returned page dirty by tid and installs/replaces it in the
// cache.
func (bp *BufferPool) DeleteTuple(tid common.TransactionID, t *Tuple) error {
	rid := t.RID()
	if rid.IsNil() {
		return common.NewLogicError("tuple has no record id to delete")
	}
	hf, err := bp.tables.HeapFile(rid.TableID)
	if err != nil {
		return err
	}
	frame, err := hf.DeleteTuple(tid, bp, t)
	if err != nil {
		return err
	}
	bp.adoptDirtyFrame(frame, tid)
	return nil
}

// adoptDirtyFrame marks frame dirty by tid and installs/replaces it in the
// cache, bypassing eviction since the frame already exists in memory (it
// came from a GetPage call HeapFile made through bp itself; if it has been
// evicted since, it is installed again).
func (bp *BufferPool) adoptDirtyFrame(frame *PageFrame, tid common.TransactionID) {
	frame.MarkDirty(tid)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, ok := bp.pages.Load(frame.ID()); !ok {
		bp.pages.Store(frame.ID(), frame)
		bp.order = append(bp.order, frame.ID())
		return
	}
	bp.pages.Store(frame.ID(), frame)
	bp.touchLocked(frame.ID())
}

// FlushPage writes pid's cached page back to its HeapFile if it is dirty,
// first appending a log record and waiting for it to be durable. The
// log-then-write order is the WAL invariant: flushPage must never let the
// on-disk page change before the log record covering that change is known
// durable.
func (bp *BufferPool) FlushPage(pid common.PageID) error {
	bp.mu.Lock()
	frame, ok := bp.pages.Load(pid)
	bp.mu.Unlock()
	if !ok {
		return nil
	}
	return bp.flushFrame(pid, frame)
}

func (bp *BufferPool) flushFrame(pid common.PageID, frame *PageFrame) error {
	dirtyTid, dirty := frame.DirtiedBy()
	if !dirty {
		return nil
	}

	frame.PageLatch.RLock()
	afterImage := append([]byte(nil), frame.Bytes[:]...)
	frame.PageLatch.RUnlock()

	lsn, err := bp.log.Append(logging.LogRecord{
		TransactionID: dirtyTid,
		BeforeImage:   frame.BeforeImage(),
		AfterImage:    afterImage,
	})
	if err != nil {
		return common.NewLogicError("appending log record for page %v: %v", pid, err)
	}
	if err := bp.log.WaitUntilFlushed(lsn); err != nil {
		return common.NewLogicError("forcing log for page %v: %v", pid, err)
	}

	hf, err := bp.tables.HeapFile(pid.TableID)
	if err != nil {
		return err
	}
	frame.PageLatch.RLock()
	writeErr := hf.WritePage(pid.PageNumber, frame)
	frame.PageLatch.RUnlock()
	if writeErr != nil {
		return writeErr
	}
	frame.clearDirty()
	return nil
}

// FlushAllPages flushes every dirty cached page. Unsafe under NO-STEAL
// outside of tests: it writes back pages whose owning transaction may not
// yet have committed.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	frames := make(map[common.PageID]*PageFrame, len(bp.order))
	bp.pages.Range(func(pid common.PageID, frame *PageFrame) bool {
		frames[pid] = frame
		return true
	})
	bp.mu.Unlock()

	for pid, frame := range frames {
		if err := bp.flushFrame(pid, frame); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage removes pid from the cache without writing it back.
func (bp *BufferPool) DiscardPage(pid common.PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.pages.Delete(pid)
	for i, id := range bp.order {
		if id == pid {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			break
		}
	}
}

// UnsafeReleasePage is the escape hatch HeapFile's insert scan uses to
// downgrade a probed read it turned out not to need.
func (bp *BufferPool) UnsafeReleasePage(tid common.TransactionID, pid common.PageID) {
	bp.locker.Release(tid, pid)
}

// TransactionComplete ends tid: on commit, flushes every page it holds
// (FORCE) before releasing its locks; on abort, discards every page it
// holds dirty — restoring on-disk state, which NO-STEAL guarantees was
// never overwritten — before releasing its locks.
func (bp *BufferPool) TransactionComplete(tid common.TransactionID, commit bool) error {
	pages := bp.locker.PagesHeldBy(tid)

	if commit {
		for _, pid := range pages {
			if err := bp.FlushPage(pid); err != nil {
				return err
			}
		}
	} else {
		for _, pid := range pages {
			bp.mu.Lock()
			frame, ok := bp.pages.Load(pid)
			bp.mu.Unlock()
			if ok {
				if _, dirty := frame.DirtiedBy(); dirty {
					bp.DiscardPage(pid)
				}
			}
		}
	}

	bp.locker.ReleaseAll(tid)
	return nil
}
