package godb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/execution"
	"github.com/dsg-courses/heapdb/logging"
	"github.com/dsg-courses/heapdb/storage"
)

func scanAll(t *testing.T, db *Database, tableID common.TableID, tid common.TransactionID) []storage.Tuple {
	t.Helper()
	scan, err := execution.NewTableScan(db.BufferPool, db.Catalog, tableID)
	require.NoError(t, err)
	require.NoError(t, scan.Open(tid))
	defer scan.Close()

	var out []storage.Tuple
	for {
		hasNext, err := scan.HasNext()
		require.NoError(t, err)
		if !hasNext {
			break
		}
		tup, err := scan.Next()
		require.NoError(t, err)
		out = append(out, tup)
	}
	return out
}

// TestDatabase_InsertThenScanRoundTrip is scenario S1: tuples written
// through Insert come back out of a fresh TableScan unchanged.
func TestDatabase_InsertThenScanRoundTrip(t *testing.T) {
	db := NewDatabase(common.DefaultBufferPoolPages, logging.NewNoopLogManager())
	desc := storage.NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"id", "name"})
	tableID, err := db.CreateTable("widgets", filepath.Join(t.TempDir(), "widgets.dat"), desc)
	require.NoError(t, err)

	rows := []storage.Tuple{
		storage.FromValues(common.NewIntValue(1), common.NewStringValue("alpha")),
		storage.FromValues(common.NewIntValue(2), common.NewStringValue("beta")),
	}
	child := &fixedRowsExecutor{desc: desc, rows: rows}

	tid := db.BeginTransaction()
	ins := execution.NewInsert(db.BufferPool, tableID, child)
	require.NoError(t, ins.Open(tid))
	hasNext, err := ins.HasNext()
	require.NoError(t, err)
	require.True(t, hasNext)
	countTuple, err := ins.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), countTuple.GetValue(0).IntValue())
	require.NoError(t, db.TransactionManager.Commit(tid))

	verifyTid := db.BeginTransaction()
	got := scanAll(t, db, tableID, verifyTid)
	require.NoError(t, db.TransactionManager.Commit(verifyTid))

	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].GetValue(0).IntValue())
	assert.Equal(t, "alpha", got[0].GetValue(1).StringValue())
	assert.Equal(t, int64(2), got[1].GetValue(0).IntValue())
	assert.Equal(t, "beta", got[1].GetValue(1).StringValue())
}

// TestDatabase_SmallPageSizeForcesMultiplePages is scenario S2: with the
// page size shrunk down, inserting enough rows to overflow one page must
// allocate a second page, and a scan must still see every row across both.
func TestDatabase_SmallPageSizeForcesMultiplePages(t *testing.T) {
	common.SetPageSizeForTest(256)
	defer common.ResetPageSizeForTest()

	db := NewDatabase(common.DefaultBufferPoolPages, logging.NewNoopLogManager())
	desc := storage.NewTupleDesc([]common.Type{common.IntType}, []string{"n"})
	tableID, err := db.CreateTable("nums", filepath.Join(t.TempDir(), "nums.dat"), desc)
	require.NoError(t, err)

	const rowCount = 40
	rows := make([]storage.Tuple, rowCount)
	for i := 0; i < rowCount; i++ {
		rows[i] = storage.FromValues(common.NewIntValue(int64(i)))
	}
	child := &fixedRowsExecutor{desc: desc, rows: rows}

	tid := db.BeginTransaction()
	ins := execution.NewInsert(db.BufferPool, tableID, child)
	require.NoError(t, ins.Open(tid))
	_, err = ins.HasNext()
	require.NoError(t, err)
	_, err = ins.Next()
	require.NoError(t, err)
	require.NoError(t, db.TransactionManager.Commit(tid))

	hf, err := db.Catalog.HeapFile(tableID)
	require.NoError(t, err)
	numPages, err := hf.NumPages()
	require.NoError(t, err)
	assert.Greater(t, numPages, 1, "small page size should have forced allocation of more than one page")

	verifyTid := db.BeginTransaction()
	got := scanAll(t, db, tableID, verifyTid)
	require.NoError(t, db.TransactionManager.Commit(verifyTid))
	assert.Len(t, got, rowCount)
}

// TestDatabase_AbortDiscardsInsertedRows is scenario S3 end-to-end: an
// aborted transaction's inserts must be invisible to a later scan, per
// NO-STEAL. The on-disk side is checked by
// TestBufferPool_NoStealAbortDiscardsDirtyPage in the storage package.
func TestDatabase_AbortDiscardsInsertedRows(t *testing.T) {
	db := NewDatabase(common.DefaultBufferPoolPages, logging.NewNoopLogManager())
	desc := storage.NewTupleDesc([]common.Type{common.IntType}, []string{"n"})
	tableID, err := db.CreateTable("nums", filepath.Join(t.TempDir(), "nums.dat"), desc)
	require.NoError(t, err)

	rows := []storage.Tuple{
		storage.FromValues(common.NewIntValue(1)),
		storage.FromValues(common.NewIntValue(2)),
	}
	child := &fixedRowsExecutor{desc: desc, rows: rows}

	tid := db.BeginTransaction()
	ins := execution.NewInsert(db.BufferPool, tableID, child)
	require.NoError(t, ins.Open(tid))
	_, err = ins.HasNext()
	require.NoError(t, err)
	_, err = ins.Next()
	require.NoError(t, err)
	require.NoError(t, db.TransactionManager.Abort(tid))

	verifyTid := db.BeginTransaction()
	got := scanAll(t, db, tableID, verifyTid)
	require.NoError(t, db.TransactionManager.Commit(verifyTid))
	assert.Empty(t, got, "aborted inserts must not be visible")
}

type fixedRowsExecutor struct {
	desc *storage.TupleDesc
	rows []storage.Tuple
	pos  int
}

func (f *fixedRowsExecutor) Open(tid common.TransactionID) error {
	f.pos = 0
	return nil
}

func (f *fixedRowsExecutor) HasNext() (bool, error) {
	return f.pos < len(f.rows), nil
}

func (f *fixedRowsExecutor) Next() (storage.Tuple, error) {
	t := f.rows[f.pos]
	f.pos++
	return t, nil
}

func (f *fixedRowsExecutor) Close() error {
	return nil
}

func (f *fixedRowsExecutor) TupleDesc() *storage.TupleDesc {
	return f.desc
}
