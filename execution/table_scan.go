package execution

import (
	"github.com/dsg-courses/heapdb/catalog"
	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/storage"
)

// TableScan is the pipeline's leaf: a sequential scan of one table's
// HeapFile, read page by page through the BufferPool under whatever
// permission the scan needs (always read-only; Insert/Delete go through
// BufferPool.InsertTuple/DeleteTuple directly, not through a scan).
type TableScan struct {
	bufferPool *storage.BufferPool
	catalog    catalog.Catalog
	tableID    common.TableID
	desc       *storage.TupleDesc

	it *storage.HeapFileIterator
}

// NewTableScan resolves tableID's schema through cat and builds a scan over
// it. The HeapFile itself is only resolved, and the iterator only opened,
// once Open is called with a transaction.
func NewTableScan(bufferPool *storage.BufferPool, cat catalog.Catalog, tableID common.TableID) (*TableScan, error) {
	desc, err := cat.TupleDesc(tableID)
	if err != nil {
		return nil, err
	}
	return &TableScan{bufferPool: bufferPool, catalog: cat, tableID: tableID, desc: desc}, nil
}

func (ts *TableScan) Open(tid common.TransactionID) error {
	hf, err := ts.catalog.HeapFile(ts.tableID)
	if err != nil {
		return err
	}
	it, err := hf.Iterator(tid, ts.bufferPool)
	if err != nil {
		return err
	}
	ts.it = it
	return nil
}

func (ts *TableScan) HasNext() (bool, error) {
	return ts.it.HasNext()
}

func (ts *TableScan) Next() (storage.Tuple, error) {
	return ts.it.Next()
}

func (ts *TableScan) Close() error {
	if ts.it != nil {
		ts.it.Close()
	}
	return nil
}

func (ts *TableScan) TupleDesc() *storage.TupleDesc {
	return ts.desc
}
