package storage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsg-courses/heapdb/common"
)

// slotModel mirrors what a Bitmap tracks for one HeapPage's worth of
// slots, as plain Go bools, so tests can check the real implementation
// against something too simple to get wrong.
type slotModel []bool

func newSlotModel(n int) slotModel {
	return make(slotModel, n)
}

func (m slotModel) firstFree(hint int) int {
	for i := hint; i < len(m); i++ {
		if !m[i] {
			return i
		}
	}
	for i := 0; i < hint; i++ {
		if !m[i] {
			return i
		}
	}
	return -1
}

func (m slotModel) popCount() int {
	n := 0
	for _, used := range m {
		if used {
			n++
		}
	}
	return n
}

func assertMatchesModel(t *testing.T, bm Bitmap, model slotModel) {
	t.Helper()
	for i, want := range model {
		assert.Equal(t, want, bm.LoadBit(i), "slot %d diverged from model", i)
	}
	assert.Equal(t, model.popCount(), bm.PopCount())
}

// newHeaderBitmap allocates a correctly aligned byte buffer the size
// AsBitmap expects for a page header covering numSlots slots.
func newHeaderBitmap(numSlots int) Bitmap {
	words := (numSlots + 63) / 64
	return AsBitmap(make([]byte, words*8), numSlots)
}

func TestBitmap_FreshHeaderIsAllZero(t *testing.T) {
	bm := newHeaderBitmap(200)
	model := newSlotModel(200)
	assertMatchesModel(t, bm, model)
	assert.Equal(t, 0, bm.FindFirstZero(0))
}

func TestBitmap_AllocatingASlotFlipsExactlyOneBit(t *testing.T) {
	bm := newHeaderBitmap(64)
	model := newSlotModel(64)

	slot := bm.FindFirstZero(0)
	require.Equal(t, 0, slot)
	prev := bm.SetBit(slot, true)
	assert.False(t, prev)
	model[slot] = true

	assertMatchesModel(t, bm, model)
	assert.Equal(t, 1, bm.FindFirstZero(0), "the next allocation should skip the occupied slot")
}

func TestBitmap_FreeingASlotMakesItAllocatableAgain(t *testing.T) {
	bm := newHeaderBitmap(8)
	for i := 0; i < 8; i++ {
		bm.SetBit(i, true)
	}
	require.Equal(t, -1, bm.FindFirstZero(0), "a fully allocated page has no free slots")

	bm.SetBit(3, false)
	assert.Equal(t, 3, bm.FindFirstZero(0))
	assert.Equal(t, 7, bm.PopCount())
}

func TestBitmap_FindFirstZeroWrapsAroundTheHint(t *testing.T) {
	bm := newHeaderBitmap(10)
	for i := 0; i < 6; i++ {
		bm.SetBit(i, true)
	}
	// Slots 0..5 are taken; searching from 6 should find 6 directly, but
	// searching from a hint past every free slot must wrap to the front.
	assert.Equal(t, 6, bm.FindFirstZero(6))
	bm.SetBit(6, true)
	bm.SetBit(7, true)
	bm.SetBit(8, true)
	bm.SetBit(9, true)
	bm.SetBit(2, false) // reopen one slot behind the hint
	assert.Equal(t, 2, bm.FindFirstZero(9))
}

func TestBitmap_CrossesWordBoundaryCleanly(t *testing.T) {
	bm := newHeaderBitmap(130)
	model := newSlotModel(130)
	for _, idx := range []int{0, 63, 64, 65, 127, 128, 129} {
		bm.SetBit(idx, true)
		model[idx] = true
	}
	assertMatchesModel(t, bm, model)
}

// TestBitmap_AgainstRandomizedSlotTraffic hammers a Bitmap with the same
// mix of operations a concurrent series of inserts and deletes would
// produce against one page's allocation header, checking every step
// against slotModel and making sure out-of-range writes never touch memory
// outside the bitmap's own backing bytes (guard regions on both sides).
func TestBitmap_AgainstRandomizedSlotTraffic(t *testing.T) {
	const numSlots = 337 // deliberately not a multiple of 64
	const guardSize = 8
	const guardByte = 0xCD

	r := rand.New(rand.NewSource(6830))

	payload := common.Align8((numSlots + 63) / 64 * 8)
	buf := make([]byte, guardSize+payload+guardSize)
	for i := 0; i < guardSize; i++ {
		buf[i] = guardByte
		buf[len(buf)-1-i] = guardByte
	}
	data := buf[guardSize : guardSize+payload]
	r.Read(data)

	bm := AsBitmap(data, numSlots)
	model := newSlotModel(numSlots)
	for i := range model {
		model[i] = bm.LoadBit(i)
	}

	checkGuards := func() {
		for i := 0; i < guardSize; i++ {
			require.Equal(t, byte(guardByte), buf[i], "pre-guard corrupted at byte %d", i)
			require.Equal(t, byte(guardByte), buf[len(buf)-1-i], "post-guard corrupted at byte %d", i)
		}
	}

	for iter := 0; iter < 20000; iter++ {
		switch r.Intn(4) {
		case 0: // simulate a delete or a direct write: set a random slot to a random value
			idx := r.Intn(numSlots)
			on := r.Intn(2) == 0
			prev := bm.SetBit(idx, on)
			require.Equal(t, model[idx], prev)
			model[idx] = on
		case 1: // simulate an insert: take the first free slot
			hint := r.Intn(numSlots)
			got := bm.FindFirstZero(hint)
			want := model.firstFree(hint)
			require.Equal(t, want, got, "iter %d: hint %d", iter, hint)
			if got != -1 {
				bm.SetBit(got, true)
				model[got] = true
			}
		case 2: // spot check a read
			idx := r.Intn(numSlots)
			require.Equal(t, model[idx], bm.LoadBit(idx))
		case 3: // full consistency + memory-safety sweep
			assertMatchesModel(t, bm, model)
			checkGuards()
		}
	}

	assertMatchesModel(t, bm, model)
	checkGuards()
}

func TestBitmap_PanicsOnOutOfRangeIndex(t *testing.T) {
	bm := newHeaderBitmap(10)
	assert.Panics(t, func() { bm.LoadBit(10) })
	assert.Panics(t, func() { bm.SetBit(-1, true) })
}

func TestBitmap_AsBitmapRejectsUnalignedBuffer(t *testing.T) {
	assert.Panics(t, func() { AsBitmap(make([]byte, 7), 8) })
}
