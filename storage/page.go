package storage

import (
	"sync"

	"github.com/dsg-courses/heapdb/common"
)

// PageFrame is one cached copy of a fixed-size on-disk page. The BufferPool
// is the only component that creates, evicts, or flushes a PageFrame; every
// other component reaches a page's bytes through the BufferPool.
type PageFrame struct {
	// Bytes holds the raw physical data of the page, exactly as it is
	// written to and read from disk. Sized to the page size in effect at
	// construction time (see common.PageSizeBytes), not to the compile-time
	// default, so tests that shrink the page size get frames of the right
	// length rather than silently reading or writing past a logical page's
	// boundary on disk.
	Bytes []byte

	// PageLatch protects Bytes from concurrent access. It is a latch in the
	// classic sense (a short-lived in-memory mutex guarding the physical
	// representation), distinct from the LockManager's page-level
	// transactional locks which protect logical access across a whole
	// transaction's lifetime. BufferPool's flush path takes it RLocked while
	// copying Bytes out for the log's after-image and for the on-disk write.
	PageLatch sync.RWMutex

	id common.PageID

	mu          sync.Mutex
	dirty       bool
	dirtyTid    common.TransactionID
	beforeImage []byte
}

// NewPageFrame allocates a zeroed frame for the given page id, sized to the
// page size currently in effect.
func NewPageFrame(id common.PageID) *PageFrame {
	return &PageFrame{id: id, Bytes: make([]byte, common.PageSizeBytes())}
}

// ID returns the PageID this frame caches.
func (frame *PageFrame) ID() common.PageID {
	return frame.id
}

// IsDirty reports whether this frame has unflushed modifications.
func (frame *PageFrame) IsDirty() bool {
	frame.mu.Lock()
	defer frame.mu.Unlock()
	return frame.dirty
}

// MarkDirty records that tid modified this frame. A page once dirtied stays
// dirty (and attributed to the first dirtying transaction) until it is
// flushed or discarded; see BufferPool.TransactionComplete.
func (frame *PageFrame) MarkDirty(tid common.TransactionID) {
	frame.mu.Lock()
	defer frame.mu.Unlock()
	if !frame.dirty {
		frame.dirty = true
		frame.dirtyTid = tid
	}
}

// clearDirty resets the dirty flag after a successful flush or discard.
func (frame *PageFrame) clearDirty() {
	frame.mu.Lock()
	defer frame.mu.Unlock()
	frame.dirty = false
	frame.dirtyTid = common.InvalidTransactionID
	frame.beforeImage = nil
}

// CaptureBeforeImage snapshots Bytes as of right now, if no snapshot is
// already pending for this dirty period. BufferPool.GetPage calls this the
// moment a page is handed out ReadWrite, before the caller has a chance to
// mutate it, so the snapshot always reflects the page's state as last
// flushed (or as read from disk, on a cache miss). clearDirty drops it once
// a flush has logged and written it, so the next dirtying cycle starts
// fresh.
func (frame *PageFrame) CaptureBeforeImage() {
	frame.mu.Lock()
	defer frame.mu.Unlock()
	if frame.beforeImage != nil {
		return
	}
	frame.PageLatch.RLock()
	frame.beforeImage = append([]byte(nil), frame.Bytes...)
	frame.PageLatch.RUnlock()
}

// BeforeImage returns the snapshot captured by CaptureBeforeImage, or nil if
// none was ever taken.
func (frame *PageFrame) BeforeImage() []byte {
	frame.mu.Lock()
	defer frame.mu.Unlock()
	return frame.beforeImage
}

// DirtiedBy returns the transaction that first dirtied this frame, and
// whether the frame is dirty at all.
func (frame *PageFrame) DirtiedBy() (common.TransactionID, bool) {
	frame.mu.Lock()
	defer frame.mu.Unlock()
	return frame.dirtyTid, frame.dirty
}
