package execution

import (
	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/storage"
)

// insertResultDesc is the schema of every Insert/Delete operator's single
// output tuple: one INT field carrying the affected row count.
var insertResultDesc = storage.NewTupleDesc([]common.Type{common.IntType}, []string{"count"})

// Insert is a one-shot operator: its first HasNext drains child entirely,
// routing every tuple it produces through BufferPool.InsertTuple, and the
// following Next returns a single tuple carrying the number inserted. Every
// later HasNext call reports end-of-stream; Next panics unless HasNext has
// just reported a result.
type Insert struct {
	bufferPool *storage.BufferPool
	tableID    common.TableID
	child      Executor

	tid     common.TransactionID
	done    bool
	emitted bool
	count   int64
}

func NewInsert(bufferPool *storage.BufferPool, tableID common.TableID, child Executor) *Insert {
	return &Insert{bufferPool: bufferPool, tableID: tableID, child: child}
}

func (in *Insert) TupleDesc() *storage.TupleDesc {
	return insertResultDesc
}

func (in *Insert) Open(tid common.TransactionID) error {
	in.tid = tid
	in.done = false
	in.emitted = false
	in.count = 0
	return in.child.Open(tid)
}

func (in *Insert) HasNext() (bool, error) {
	if in.done {
		return false, nil
	}
	for {
		hasNext, err := in.child.HasNext()
		if err != nil {
			return false, err
		}
		if !hasNext {
			break
		}
		t, err := in.child.Next()
		if err != nil {
			return false, err
		}
		if err := in.bufferPool.InsertTuple(in.tid, in.tableID, &t); err != nil {
			return false, err
		}
		in.count++
	}
	in.done = true
	return !in.emitted, nil
}

func (in *Insert) Next() (storage.Tuple, error) {
	common.Assert(in.done && !in.emitted, "Next called before HasNext confirmed a result")
	in.emitted = true
	return storage.FromValues(common.NewIntValue(in.count)), nil
}

func (in *Insert) Close() error {
	return in.child.Close()
}
