package logging

import (
	"sync"

	"github.com/dsg-courses/heapdb/common"
)

// NoopLogManager discards every record. WaitUntilFlushed always succeeds
// immediately, so components under test never actually block on the log.
type NoopLogManager struct{}

func NewNoopLogManager() *NoopLogManager {
	return &NoopLogManager{}
}

func (n *NoopLogManager) Append(record LogRecord) (common.LSN, error) {
	return common.InvalidLSN, nil
}

func (n *NoopLogManager) WaitUntilFlushed(lsn common.LSN) error {
	return nil
}

// MemoryLogManager appends records to an in-memory buffer and exposes them
// for assertions in tests that need to observe what the flush path wrote,
// without standing up a real on-disk WAL.
type MemoryLogManager struct {
	mu      sync.Mutex
	records []LogRecord
	nextLSN common.LSN
}

func NewMemoryLogManager() *MemoryLogManager {
	return &MemoryLogManager{nextLSN: 1}
}

func (m *MemoryLogManager) Append(record LogRecord) (common.LSN, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lsn := m.nextLSN
	m.nextLSN++
	m.records = append(m.records, record)
	return lsn, nil
}

// WaitUntilFlushed is a no-op: every Append above is already durable as far
// as this in-memory stand-in is concerned.
func (m *MemoryLogManager) WaitUntilFlushed(lsn common.LSN) error {
	return nil
}

// Records returns a snapshot of every record appended so far, in order.
func (m *MemoryLogManager) Records() []LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogRecord, len(m.records))
	copy(out, m.records)
	return out
}
