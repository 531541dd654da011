package db

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// PebbleDBDatabase is a PebbleDB implementation of the Database interface.
type PebbleDBDatabase struct {
	db *pebble.DB
}

// NewPebbleDB creates a new, unopened PebbleDB database.
func NewPebbleDB() Database {
	return &PebbleDBDatabase{}
}

func (pdb *PebbleDBDatabase) Open(path string) error {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return err
	}
	pdb.db = db
	return nil
}

func (pdb *PebbleDBDatabase) Close() error {
	return pdb.db.Close()
}

func (pdb *PebbleDBDatabase) Put(key, value []byte) error {
	return pdb.db.Set(key, value, pebble.Sync)
}

func (pdb *PebbleDBDatabase) Get(key []byte) ([]byte, error) {
	value, closer, err := pdb.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// value is only valid until closer.Close().
	return copyBytes(value), nil
}

func (pdb *PebbleDBDatabase) Delete(key []byte) error {
	return pdb.db.Delete(key, pebble.Sync)
}

func (pdb *PebbleDBDatabase) Has(key []byte) (bool, error) {
	_, closer, err := pdb.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (pdb *PebbleDBDatabase) Iterator(prefix []byte) (Iterator, error) {
	iter, err := pdb.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	return &PebbleDBIterator{iter: iter}, nil
}

func (pdb *PebbleDBDatabase) Batch() Batch {
	return &PebbleDBBatch{
		batch: pdb.db.NewBatch(),
	}
}

// PebbleDBIterator is a PebbleDB implementation of the Iterator interface.
type PebbleDBIterator struct {
	iter    *pebble.Iterator
	started bool
}

func (it *PebbleDBIterator) Next() bool {
	if !it.started {
		it.started = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *PebbleDBIterator) Key() []byte {
	return copyBytes(it.iter.Key())
}

func (it *PebbleDBIterator) Value() []byte {
	return copyBytes(it.iter.Value())
}

func (it *PebbleDBIterator) Error() error {
	return it.iter.Error()
}

func (it *PebbleDBIterator) Close() error {
	return it.iter.Close()
}

// PebbleDBBatch is a PebbleDB implementation of the Batch interface.
type PebbleDBBatch struct {
	batch *pebble.Batch
}

func (b *PebbleDBBatch) Put(key, value []byte) error {
	return b.batch.Set(key, value, nil)
}

func (b *PebbleDBBatch) Delete(key []byte) error {
	return b.batch.Delete(key, nil)
}

func (b *PebbleDBBatch) Write() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *PebbleDBBatch) Reset() {
	b.batch.Reset()
}
