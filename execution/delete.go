package execution

import (
	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/storage"
)

// Delete is a one-shot operator: its first HasNext drains child entirely,
// routing every tuple it produces through BufferPool.DeleteTuple, and the
// following Next returns a single tuple carrying the number deleted. Every
// later HasNext call reports end-of-stream; Next panics unless HasNext has
// just reported a result. Unlike Insert, Delete needs no tableID:
// each tuple it deletes already carries a RecordID naming its own table.
type Delete struct {
	bufferPool *storage.BufferPool
	child      Executor

	tid     common.TransactionID
	done    bool
	emitted bool
	count   int64
}

func NewDelete(bufferPool *storage.BufferPool, child Executor) *Delete {
	return &Delete{bufferPool: bufferPool, child: child}
}

func (del *Delete) TupleDesc() *storage.TupleDesc {
	return insertResultDesc
}

func (del *Delete) Open(tid common.TransactionID) error {
	del.tid = tid
	del.done = false
	del.emitted = false
	del.count = 0
	return del.child.Open(tid)
}

func (del *Delete) HasNext() (bool, error) {
	if del.done {
		return false, nil
	}
	for {
		hasNext, err := del.child.HasNext()
		if err != nil {
			return false, err
		}
		if !hasNext {
			break
		}
		t, err := del.child.Next()
		if err != nil {
			return false, err
		}
		if err := del.bufferPool.DeleteTuple(del.tid, &t); err != nil {
			return false, err
		}
		del.count++
	}
	del.done = true
	return !del.emitted, nil
}

func (del *Delete) Next() (storage.Tuple, error) {
	common.Assert(del.done && !del.emitted, "Next called before HasNext confirmed a result")
	del.emitted = true
	return storage.FromValues(common.NewIntValue(del.count)), nil
}

func (del *Delete) Close() error {
	return del.child.Close()
}
