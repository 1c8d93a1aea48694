// Package logging provides the narrow write-ahead-log interface the buffer
// pool's flush path depends on. The log's own on-disk format, checkpoints,
// and ARIES-style recovery are out of scope here: only Append and
// WaitUntilFlushed are consumed, mirroring how little of a real WAL the
// flush path actually needs to stay correct.
package logging

import "github.com/dsg-courses/heapdb/common"

// LogRecord is the minimal unit appended to the log: enough to redo/undo a
// single page write, attributed to the transaction that made it.
type LogRecord struct {
	TransactionID common.TransactionID
	BeforeImage   []byte
	AfterImage    []byte
}

// LogManager is the WAL interface BufferPool.flushPage depends on: append a
// record, then block until it (and everything before it) is durable before
// the corresponding page write is allowed to proceed.
type LogManager interface {
	Append(record LogRecord) (common.LSN, error)
	WaitUntilFlushed(lsn common.LSN) error
}
