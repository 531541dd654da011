package db

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryDatabase is an in-memory implementation of the Database interface.
type MemoryDatabase struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryDB creates a new in-memory database.
func NewMemoryDB() Database {
	return &MemoryDatabase{
		data: make(map[string][]byte),
	}
}

// Open is a no-op for the memory database.
func (mdb *MemoryDatabase) Open(string) error {
	return nil
}

// Close drops all data.
func (mdb *MemoryDatabase) Close() error {
	mdb.mu.Lock()
	defer mdb.mu.Unlock()
	mdb.data = make(map[string][]byte)
	return nil
}

func (mdb *MemoryDatabase) Put(key, value []byte) error {
	mdb.mu.Lock()
	defer mdb.mu.Unlock()

	mdb.data[string(key)] = copyBytes(value)
	return nil
}

func (mdb *MemoryDatabase) Get(key []byte) ([]byte, error) {
	mdb.mu.RLock()
	defer mdb.mu.RUnlock()

	value, exists := mdb.data[string(key)]
	if !exists {
		return nil, ErrNotFound
	}
	return copyBytes(value), nil
}

func (mdb *MemoryDatabase) Delete(key []byte) error {
	mdb.mu.Lock()
	defer mdb.mu.Unlock()

	delete(mdb.data, string(key))
	return nil
}

func (mdb *MemoryDatabase) Has(key []byte) (bool, error) {
	mdb.mu.RLock()
	defer mdb.mu.RUnlock()

	_, exists := mdb.data[string(key)]
	return exists, nil
}

// Iterator takes a snapshot of the matching entries, so later writes are not
// visible to it.
func (mdb *MemoryDatabase) Iterator(prefix []byte) (Iterator, error) {
	mdb.mu.RLock()
	defer mdb.mu.RUnlock()

	it := &MemoryIterator{pos: -1}
	for key, value := range mdb.data {
		if bytes.HasPrefix([]byte(key), prefix) {
			it.keys = append(it.keys, key)
			it.values = append(it.values, copyBytes(value))
		}
	}
	sort.Sort(it)

	return it, nil
}

func (mdb *MemoryDatabase) Batch() Batch {
	return &MemoryBatch{db: mdb}
}

// MemoryIterator implements Iterator over a sorted snapshot.
type MemoryIterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (mi *MemoryIterator) Len() int           { return len(mi.keys) }
func (mi *MemoryIterator) Less(i, j int) bool { return mi.keys[i] < mi.keys[j] }
func (mi *MemoryIterator) Swap(i, j int) {
	mi.keys[i], mi.keys[j] = mi.keys[j], mi.keys[i]
	mi.values[i], mi.values[j] = mi.values[j], mi.values[i]
}

func (mi *MemoryIterator) Next() bool {
	mi.pos++
	return mi.pos < len(mi.keys)
}

func (mi *MemoryIterator) Key() []byte {
	if mi.pos < 0 || mi.pos >= len(mi.keys) {
		return nil
	}
	return []byte(mi.keys[mi.pos])
}

func (mi *MemoryIterator) Value() []byte {
	if mi.pos < 0 || mi.pos >= len(mi.keys) {
		return nil
	}
	return copyBytes(mi.values[mi.pos])
}

func (mi *MemoryIterator) Error() error { return nil }

func (mi *MemoryIterator) Close() error { return nil }

type memoryOp struct {
	key    string
	value  []byte
	delete bool
}

// MemoryBatch implements Batch for the memory database. Operations are
// replayed in the order they were added.
type MemoryBatch struct {
	db  *MemoryDatabase
	ops []memoryOp
}

func (mb *MemoryBatch) Put(key, value []byte) error {
	mb.ops = append(mb.ops, memoryOp{key: string(key), value: copyBytes(value)})
	return nil
}

func (mb *MemoryBatch) Delete(key []byte) error {
	mb.ops = append(mb.ops, memoryOp{key: string(key), delete: true})
	return nil
}

func (mb *MemoryBatch) Write() error {
	mb.db.mu.Lock()
	defer mb.db.mu.Unlock()

	for _, op := range mb.ops {
		if op.delete {
			delete(mb.db.data, op.key)
			continue
		}
		mb.db.data[op.key] = op.value
	}
	return nil
}

func (mb *MemoryBatch) Reset() {
	mb.ops = mb.ops[:0]
}
