package db

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBDatabase is a LevelDB implementation of the Database interface.
type LevelDBDatabase struct {
	db *leveldb.DB
}

// NewLevelDB creates a new, unopened LevelDB database.
func NewLevelDB() Database {
	return &LevelDBDatabase{}
}

func (ldb *LevelDBDatabase) Open(path string) error {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return err
	}
	ldb.db = db
	return nil
}

func (ldb *LevelDBDatabase) Close() error {
	return ldb.db.Close()
}

func (ldb *LevelDBDatabase) Put(key, value []byte) error {
	return ldb.db.Put(key, value, &opt.WriteOptions{Sync: true})
}

func (ldb *LevelDBDatabase) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (ldb *LevelDBDatabase) Delete(key []byte) error {
	return ldb.db.Delete(key, &opt.WriteOptions{Sync: true})
}

func (ldb *LevelDBDatabase) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

func (ldb *LevelDBDatabase) Iterator(prefix []byte) (Iterator, error) {
	return &LevelDBIterator{
		iter: ldb.db.NewIterator(util.BytesPrefix(prefix), nil),
	}, nil
}

func (ldb *LevelDBDatabase) Batch() Batch {
	return &LevelDBBatch{
		batch: new(leveldb.Batch),
		db:    ldb.db,
	}
}

// LevelDBIterator is a LevelDB implementation of the Iterator interface.
type LevelDBIterator struct {
	iter iterator.Iterator
}

func (it *LevelDBIterator) Next() bool {
	return it.iter.Next()
}

func (it *LevelDBIterator) Key() []byte {
	return copyBytes(it.iter.Key())
}

func (it *LevelDBIterator) Value() []byte {
	return copyBytes(it.iter.Value())
}

func (it *LevelDBIterator) Error() error {
	return it.iter.Error()
}

func (it *LevelDBIterator) Close() error {
	it.iter.Release()
	return nil
}

// LevelDBBatch is a LevelDB implementation of the Batch interface.
type LevelDBBatch struct {
	batch *leveldb.Batch
	db    *leveldb.DB
}

func (b *LevelDBBatch) Put(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *LevelDBBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *LevelDBBatch) Write() error {
	return b.db.Write(b.batch, &opt.WriteOptions{Sync: true})
}

func (b *LevelDBBatch) Reset() {
	b.batch.Reset()
}
