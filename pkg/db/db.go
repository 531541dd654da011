package db

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key is absent, whatever the
// backend.
var ErrNotFound = errors.New("key not found")

// Database is the key-value store the ledger persists to.
type Database interface {
	// Open opens the database at path. In-memory backends ignore it.
	Open(path string) error

	// Close releases the database.
	Close() error

	// Put stores a key-value pair.
	Put(key, value []byte) error

	// Get retrieves a value by key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Delete removes a key-value pair.
	Delete(key []byte) error

	// Has checks if a key exists.
	Has(key []byte) (bool, error)

	// Iterator walks every key that starts with prefix in ascending order.
	Iterator(prefix []byte) (Iterator, error)

	// Batch returns a batch for atomic updates.
	Batch() Batch
}

// Iterator walks a key range. Key and Value return copies that stay valid
// after Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Batch groups writes that are applied together or not at all.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Write() error
	Reset()
}

// DBType names a storage backend.
type DBType string

const (
	// Memory keeps everything in process memory.
	Memory DBType = "memory"

	// LevelDB stores to a goleveldb directory.
	LevelDB DBType = "leveldb"

	// PebbleDB stores to a pebble directory.
	PebbleDB DBType = "pebble"
)

// NewDatabase creates an unopened database of the given type.
func NewDatabase(dbType DBType) (Database, error) {
	switch dbType {
	case Memory:
		return NewMemoryDB(), nil
	case LevelDB:
		return NewLevelDB(), nil
	case PebbleDB:
		return NewPebbleDB(), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}

// Open creates and opens a database of the given type at path.
func Open(dbType DBType, path string) (Database, error) {
	database, err := NewDatabase(dbType)
	if err != nil {
		return nil, err
	}
	if err := database.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open %s database at %s: %w",
			dbType, path, err)
	}
	return database, nil
}

// prefixEnd returns the smallest key greater than every key with the given
// prefix, or nil if there is none.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
