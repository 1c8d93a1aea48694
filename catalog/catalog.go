// Package catalog resolves a table's stable id to the HeapFile and schema
// backing it. A full schema registry with persistence and ALTER semantics
// is explicitly out of scope: this catalog is in-memory only, and a fresh
// process must re-register every table it wants to use.
package catalog

import (
	"sync"

	"github.com/dsg-courses/heapdb/common"
	"github.com/dsg-courses/heapdb/storage"
)

// Catalog is the minimal interface the storage and execution layers need
// to resolve a table id to its backing HeapFile and TupleDesc.
type Catalog interface {
	RegisterTable(name string, desc *storage.TupleDesc, file *storage.HeapFile) (common.TableID, error)
	HeapFile(tid common.TableID) (*storage.HeapFile, error)
	TupleDesc(tid common.TableID) (*storage.TupleDesc, error)
	TableID(name string) (common.TableID, error)
}

type tableEntry struct {
	name string
	desc *storage.TupleDesc
	file *storage.HeapFile
}

// InMemoryCatalog is the only Catalog implementation shipped here. It has
// no ALTER/DROP semantics, no indexing metadata, and no JSON (or any)
// persistence to disk.
type InMemoryCatalog struct {
	mu       sync.RWMutex
	tables   map[common.TableID]tableEntry
	nameToID map[string]common.TableID
}

// NewInMemoryCatalog constructs an empty catalog.
func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		tables:   make(map[common.TableID]tableEntry),
		nameToID: make(map[string]common.TableID),
	}
}

// RegisterTable records file (already opened, with its TableID already
// computed from its canonical path) under name. Fails with
// IllegalArgumentError if name is already registered to a different table.
func (c *InMemoryCatalog) RegisterTable(name string, desc *storage.TupleDesc, file *storage.HeapFile) (common.TableID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tid := file.TableID()
	if existing, ok := c.nameToID[name]; ok && existing != tid {
		return common.InvalidTableID, common.NewIllegalArgumentError("table %q already registered", name)
	}

	c.tables[tid] = tableEntry{name: name, desc: desc, file: file}
	c.nameToID[name] = tid
	return tid, nil
}

// HeapFile returns the HeapFile registered under tid.
func (c *InMemoryCatalog) HeapFile(tid common.TableID) (*storage.HeapFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.tables[tid]
	if !ok {
		return nil, common.NewLogicError("no such table id %d", tid)
	}
	return entry.file, nil
}

// TupleDesc returns the schema registered under tid.
func (c *InMemoryCatalog) TupleDesc(tid common.TableID) (*storage.TupleDesc, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.tables[tid]
	if !ok {
		return nil, common.NewLogicError("no such table id %d", tid)
	}
	return entry.desc, nil
}

// TableID resolves a registered table's name to its id.
func (c *InMemoryCatalog) TableID(name string) (common.TableID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tid, ok := c.nameToID[name]
	if !ok {
		return common.InvalidTableID, common.NewLogicError("no such table %q", name)
	}
	return tid, nil
}
