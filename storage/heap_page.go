package storage

import (
	"encoding/binary"

	"github.com/dsg-courses/heapdb/common"
)

// HeapPage layout:
//
//	RowSize (2) | NumSlots (2) | Padding (4) | allocation bitmap | rows
//
// The allocation bitmap is the sole source of truth for which slots are
// occupied: NumUsed is always popcount(allocation bitmap), never a
// separately maintained counter that could drift out of sync.
type HeapPage struct {
	*PageFrame

	allocationBitmap Bitmap
	rowDataStart     int
}

const (
	heapPageOffsetRowSize  = 0
	heapPageOffsetNumSlots = heapPageOffsetRowSize + 2
)

const heapPageHeaderSize = heapPageOffsetNumSlots + 2 + 4

// NumUsed returns the number of occupied slots, computed as the population
// count of the allocation bitmap so it can never disagree with it.
func (hp HeapPage) NumUsed() int {
	return hp.allocationBitmap.PopCount()
}

func (hp HeapPage) NumSlots() int {
	return int(binary.LittleEndian.Uint16(hp.Bytes[heapPageOffsetNumSlots:]))
}

func (hp HeapPage) RowSize() int {
	return int(binary.LittleEndian.Uint16(hp.Bytes[heapPageOffsetRowSize:]))
}

// InitializeHeapPage writes a fresh, empty header for a page holding rows
// of desc's width into frame, sizing the slot count to maximize the number
// of rows that fit alongside an 8-byte-aligned allocation bitmap.
func InitializeHeapPage(desc *RawTupleDesc, frame *PageFrame) {
	rowSize := desc.BytesPerTuple()
	common.Assert(common.AlignedTo8(rowSize), "tuple width %d should be aligned to 8", rowSize)

	available := common.PageSizeBytes() - heapPageHeaderSize
	// Each additional 64 slots costs 64*rowSize bytes of row data plus one
	// 8-byte bitmap word.
	blockSize := (64 * rowSize) + 8
	fullBlocks, remainder := available/blockSize, available%blockSize
	numSlots := fullBlocks * 64
	if remainder > 8 {
		numSlots += (remainder - 8) / rowSize
	}

	binary.LittleEndian.PutUint16(frame.Bytes[heapPageOffsetRowSize:], uint16(rowSize))
	binary.LittleEndian.PutUint16(frame.Bytes[heapPageOffsetNumSlots:], uint16(numSlots))

	bitmapSize := common.Align8((numSlots + 7) / 8)
	for i := heapPageHeaderSize; i < heapPageHeaderSize+bitmapSize; i++ {
		frame.Bytes[i] = 0
	}
}

// AsHeapPage interprets an already-initialized frame as a HeapPage.
func (frame *PageFrame) AsHeapPage() HeapPage {
	result := HeapPage{PageFrame: frame}
	numSlots := result.NumSlots()
	common.Assert(result.RowSize() > 0 && numSlots > 0, "uninitialized heap page")

	result.allocationBitmap = AsBitmap(result.Bytes[heapPageHeaderSize:], numSlots)
	bitmapSize := common.Align8((numSlots + 7) / 8)
	result.rowDataStart = heapPageHeaderSize + bitmapSize
	return result
}

// FindFreeSlot returns the index of an unallocated slot, or -1 if the page
// is full.
func (hp HeapPage) FindFreeSlot() int {
	if hp.NumUsed() == hp.NumSlots() {
		return -1
	}
	return hp.allocationBitmap.FindFirstZero(0)
}

// IsAllocated reports whether rid's slot is currently occupied. Out-of-range
// slots report false rather than asserting, so callers can safely probe
// record ids of unknown provenance.
func (hp HeapPage) IsAllocated(rid common.RecordID) bool {
	slot := rid.SlotNumber
	if slot < 0 || slot >= hp.NumSlots() {
		return false
	}
	return hp.allocationBitmap.LoadBit(slot)
}

// MarkAllocated sets or clears the allocation bit for rid's slot.
func (hp HeapPage) MarkAllocated(rid common.RecordID, allocated bool) {
	slot := rid.SlotNumber
	common.Assert(slot >= 0 && slot < hp.NumSlots(), "slot out of bounds")
	hp.allocationBitmap.SetBit(slot, allocated)
}

// AccessTuple returns the raw row bytes for rid's slot. The slot must be
// allocated.
func (hp HeapPage) AccessTuple(rid common.RecordID) RawTuple {
	slot := rid.SlotNumber
	common.Assert(slot >= 0 && slot < hp.NumSlots(), "slot out of bounds")
	common.Assert(hp.allocationBitmap.LoadBit(slot), "slot not allocated")
	rowSize := hp.RowSize()
	return hp.Bytes[hp.rowDataStart+slot*rowSize : hp.rowDataStart+(slot+1)*rowSize]
}
