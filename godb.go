// Package godb wires the storage, lock, and transaction layers together
// behind a single Database handle, avoiding the module-level singletons
// (catalog, buffer pool, log) that the teaching lab this is built from uses.
package godb

import (
	"github.com/dsg-courses/heapdb/catalog"
	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/logging"
	"github.com/dsg-courses/heapdb/storage"
	"github.com/dsg-courses/heapdb/transaction"
)

// Database is the top-level handle: every component that needs a
// collaborator reaches it through here, constructed once and passed by
// reference, rather than through a package-level global.
type Database struct {
	Catalog            catalog.Catalog
	LockManager        *transaction.LockManager
	BufferPool         *storage.BufferPool
	LogManager         logging.LogManager
	TransactionManager *transaction.TransactionManager
}

// NewDatabase wires a fresh Database with the given buffer pool capacity
// and log manager. Tables are registered afterward via CreateTable.
func NewDatabase(bufferPoolPages int, logManager logging.LogManager) *Database {
	cat := catalog.NewInMemoryCatalog()
	lockManager := transaction.NewLockManager()
	bufferPool := storage.NewBufferPool(bufferPoolPages, lockManager, cat, logManager)
	transactionManager := transaction.NewTransactionManager(bufferPool)

	return &Database{
		Catalog:            cat,
		LockManager:        lockManager,
		BufferPool:         bufferPool,
		LogManager:         logManager,
		TransactionManager: transactionManager,
	}
}

// CreateTable opens (or reopens) the heap file at path as a table of the
// given schema, registers it in the catalog under name, and returns its
// TableID.
func (db *Database) CreateTable(name, path string, desc *storage.TupleDesc) (common.TableID, error) {
	hf, err := storage.OpenHeapFile(path, desc)
	if err != nil {
		return common.InvalidTableID, err
	}
	return db.Catalog.RegisterTable(name, desc, hf)
}

// BeginTransaction allocates a fresh TransactionID through the
// TransactionManager.
func (db *Database) BeginTransaction() common.TransactionID {
	return db.TransactionManager.Begin()
}
