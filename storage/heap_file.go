package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dsg-courses/heapdb/common"
)

// PageGetter is the narrow view of a BufferPool that HeapFile needs to
// implement its scan-for-space insert algorithm: fetch a page in a given
// permission mode, and downgrade a probed read when it turns out to be
// unneeded (the escape hatch the buffer pool calls unsafeReleasePage).
type PageGetter interface {
	GetPage(tid common.TransactionID, pid common.PageID, perm common.Permissions) (*PageFrame, error)
	UnsafeReleasePage(tid common.TransactionID, pid common.PageID)
}

// HeapFile is a table's on-disk representation: a contiguous sequence of
// fixed-size pages, page 0 first, with no particular tuple ordering within
// or across pages. It owns its backing *os.File directly; opening and
// closing that file is this type's job alone, not a separate collaborator.
type HeapFile struct {
	file    *os.File
	desc    *TupleDesc
	rawDesc *RawTupleDesc
	tableID common.TableID
}

// OpenHeapFile opens (creating if necessary) the file at path as the
// backing store for a table of the given schema. The TableID is computed
// once, from the file's canonical absolute path, and cached for the
// lifetime of the HeapFile.
func OpenHeapFile(path string, desc *TupleDesc) (*HeapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, common.NewIOError("opening heap file %s: %v", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		f.Close()
		return nil, common.NewIOError("resolving absolute path for %s: %v", path, err)
	}
	return &HeapFile{
		file:    f,
		desc:    desc,
		rawDesc: desc.raw(),
		tableID: common.TableID(common.Hash([]byte(filepath.Clean(abs)))),
	}, nil
}

// TableID returns the stable table identity computed at construction.
func (hf *HeapFile) TableID() common.TableID {
	return hf.tableID
}

// TupleDesc returns the table's logical schema.
func (hf *HeapFile) TupleDesc() *TupleDesc {
	return hf.desc
}

// Close releases the backing file descriptor.
func (hf *HeapFile) Close() error {
	return hf.file.Close()
}

// NumPages returns floor(fileLength / pageSize). A non-zero remainder is an
// on-disk corruption invariant violation.
func (hf *HeapFile) NumPages() (int, error) {
	info, err := hf.file.Stat()
	if err != nil {
		return 0, common.NewIOError("stat heap file: %v", err)
	}
	size := info.Size()
	pageSize := int64(common.PageSizeBytes())
	common.Assert(size%pageSize == 0, "heap file length %d is not a multiple of the page size", size)
	return int(size / pageSize), nil
}

// ReadPage reads exactly one page's worth of bytes at pageNumber's offset
// into frame.
func (hf *HeapFile) ReadPage(pageNumber int, frame *PageFrame) error {
	offset := int64(pageNumber) * int64(common.PageSizeBytes())
	n, err := hf.file.ReadAt(frame.Bytes[:], offset)
	if err != nil && err != io.EOF {
		return common.NewIOError("reading page %d: %v", pageNumber, err)
	}
	if n != common.PageSizeBytes() {
		return common.NewIOError("short read of page %d: got %d bytes", pageNumber, n)
	}
	return nil
}

// WritePage writes frame's bytes at pageNumber's offset, extending the file
// if pageNumber == NumPages().
func (hf *HeapFile) WritePage(pageNumber int, frame *PageFrame) error {
	offset := int64(pageNumber) * int64(common.PageSizeBytes())
	if _, err := hf.file.WriteAt(frame.Bytes[:], offset); err != nil {
		return common.NewIOError("writing page %d: %v", pageNumber, err)
	}
	return nil
}

// InsertTuple finds room for t and writes it, returning the PageFrame it
// landed on. It scans existing pages read-only for free space first
// (upgrading to write only once a candidate is found, and otherwise
// releasing the read probe via UnsafeReleasePage unless tid has already
// dirtied that page), and only allocates a new page when none of the
// existing ones have room.
//
// The caller (BufferPool.InsertTuple) is responsible for marking the
// returned frame dirty by tid and installing it in the cache — HeapFile
// only manipulates page bytes and the lock/cache state that PageGetter
// exposes.
//
// The new-page case writes an empty, freshly initialized page to disk
// before touching it, purely to extend the file and reserve the slot so a
// concurrent insert's numPages() scan will not race past it. The page is
// then fetched back through pool with write permission, and the tuple is
// written only into that cached frame, never directly to disk — so an
// aborted insert that allocated a new page leaves that page's on-disk bytes
// empty, exactly as NO-STEAL requires.
func (hf *HeapFile) InsertTuple(tid common.TransactionID, pool PageGetter, t *Tuple) (*PageFrame, error) {
	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}

	for idx := 0; idx < numPages; idx++ {
		pid := common.PageID{TableID: hf.tableID, PageNumber: idx}
		frame, err := pool.GetPage(tid, pid, common.ReadOnly)
		if err != nil {
			return nil, err
		}
		hp := frame.AsHeapPage()
		if hp.NumUsed() < hp.NumSlots() {
			frame, err = pool.GetPage(tid, pid, common.ReadWrite)
			if err != nil {
				return nil, err
			}
			if err := hf.writeTupleInto(frame, t); err != nil {
				return nil, err
			}
			return frame, nil
		}
		// A dirty page here was written by tid itself (no other transaction
		// could hold it dirty while tid holds a read lock), so its lock is
		// kept; only a probe of a clean page is released.
		if !frame.IsDirty() {
			pool.UnsafeReleasePage(tid, pid)
		}
	}

	newPid := common.PageID{TableID: hf.tableID, PageNumber: numPages}
	emptyFrame := NewPageFrame(newPid)
	InitializeHeapPage(hf.rawDesc, emptyFrame)
	if err := hf.WritePage(numPages, emptyFrame); err != nil {
		return nil, err
	}

	// Fetch the new page back through the pool in ReadWrite mode, so tid holds
	// its write lock (and commit/abort reach it) and GetPage captures its
	// before-image before writeTupleInto mutates it.
	newFrame, err := pool.GetPage(tid, newPid, common.ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := hf.writeTupleInto(newFrame, t); err != nil {
		return nil, err
	}
	return newFrame, nil
}

func (hf *HeapFile) writeTupleInto(frame *PageFrame, t *Tuple) error {
	hp := frame.AsHeapPage()
	slot := hp.FindFreeSlot()
	common.Assert(slot != -1, "page reported available slots but FindFreeSlot failed")
	rid := common.RecordID{PageID: frame.ID(), SlotNumber: slot}
	hp.MarkAllocated(rid, true)
	tup := hp.AccessTuple(rid)
	t.WriteToBuffer(tup, hf.rawDesc)
	return nil
}

// DeleteTuple clears t's slot, acquiring a write lock on its page through
// pool first, and returns the modified PageFrame for the caller to mark
// dirty. Fails with LogicError if t has no RecordID or its table does not
// match this file.
func (hf *HeapFile) DeleteTuple(tid common.TransactionID, pool PageGetter, t *Tuple) (*PageFrame, error) {
	rid := t.RID()
	if rid.IsNil() {
		return nil, common.NewLogicError("tuple has no record id to delete")
	}
	if rid.TableID != hf.tableID {
		return nil, common.NewLogicError("tuple not in this table")
	}

	frame, err := pool.GetPage(tid, rid.PageID, common.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := frame.AsHeapPage()
	if !hp.IsAllocated(rid) {
		return nil, common.NewLogicError("tuple not in this table")
	}
	hp.MarkAllocated(rid, false)
	return frame, nil
}

// Iterator returns a restartable, page-by-page scan over every tuple
// currently stored in the file, reading pages through pool with read
// permission. It never holds more than one page's worth of tuples pending.
func (hf *HeapFile) Iterator(tid common.TransactionID, pool PageGetter) (*HeapFileIterator, error) {
	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}
	return &HeapFileIterator{hf: hf, pool: pool, tid: tid, pageLimit: numPages}, nil
}

// HeapFileIterator walks a HeapFile's pages in order, yielding every
// allocated slot's tuple. Rewind reopens at page 0 using the same
// pageLimit captured when the iterator was created, matching the spec's
// "no guarantee" about visibility of concurrently inserted pages.
type HeapFileIterator struct {
	hf        *HeapFile
	pool      PageGetter
	tid       common.TransactionID
	pageLimit int

	pageIdx    int
	curFrame   *PageFrame
	slotInPage int
}

// HasNext reports whether another tuple is available without consuming it.
func (it *HeapFileIterator) HasNext() (bool, error) {
	for {
		if it.curFrame == nil {
			if it.pageIdx >= it.pageLimit {
				return false, nil
			}
			pid := common.PageID{TableID: it.hf.tableID, PageNumber: it.pageIdx}
			frame, err := it.pool.GetPage(it.tid, pid, common.ReadOnly)
			if err != nil {
				return false, err
			}
			it.curFrame = frame
			it.slotInPage = 0
		}

		hp := it.curFrame.AsHeapPage()
		for it.slotInPage < hp.NumSlots() {
			rid := common.RecordID{PageID: it.curFrame.ID(), SlotNumber: it.slotInPage}
			if hp.IsAllocated(rid) {
				return true, nil
			}
			it.slotInPage++
		}

		// Exhausted this page; advance to the next one and loop.
		it.curFrame = nil
		it.pageIdx++
	}
}

// Next returns the next tuple, advancing the iterator. Callers must check
// HasNext first.
func (it *HeapFileIterator) Next() (Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return Tuple{}, err
	}
	common.Assert(ok, "Next called with no tuple available")

	hp := it.curFrame.AsHeapPage()
	rid := common.RecordID{PageID: it.curFrame.ID(), SlotNumber: it.slotInPage}
	raw := hp.AccessTuple(rid)
	it.slotInPage++
	return FromRawTuple(raw, it.hf.rawDesc, rid), nil
}

// Rewind restarts the scan from page 0.
func (it *HeapFileIterator) Rewind() {
	it.pageIdx = 0
	it.curFrame = nil
	it.slotInPage = 0
}

// Close releases any page the iterator is holding a reference to. It holds
// no lock of its own beyond what GetPage already acquired for the caller's
// transaction.
func (it *HeapFileIterator) Close() {
	it.curFrame = nil
}
