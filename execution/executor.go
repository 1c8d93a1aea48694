package execution

import (
	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/storage"
)

// Executor is the pull-based interface every node in the query pipeline
// implements. Open binds the operator to a transaction and does whatever
// up-front work it needs (a table scan opens its HeapFile iterator; an
// Aggregator drains its child entirely); HasNext/Next drain output tuples
// one at a time; Close releases any state the operator itself holds. It
// does not release locks — those live for the transaction's lifetime,
// independent of any one operator's.
type Executor interface {
	Open(tid common.TransactionID) error
	HasNext() (bool, error)
	Next() (storage.Tuple, error)
	Close() error
	TupleDesc() *storage.TupleDesc
}
