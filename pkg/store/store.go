package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/crypto"
	"github.com/torcnet/powchain/pkg/db"
)

var (
	blockPrefix = []byte("b/")
	peerPrefix  = []byte("n/")
	heightKey   = []byte("m/height")
	pendingKey  = []byte("m/pending")
)

// ErrCorrupt is returned when a stored record fails its checksum or cannot
// be decoded.
var ErrCorrupt = errors.New("corrupt record")

// Store persists the chain, the pool and the peer set in a key-value
// database. Every record is wrapped in a BLAKE3 checksum envelope.
type Store struct {
	db db.Database
}

// New wraps an opened database.
func New(database db.Database) *Store {
	return &Store{db: database}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func blockKey(index uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], index)
	return key
}

func encodeHeight(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}

func putRecord(batch db.Batch, key []byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return batch.Put(key, crypto.Seal(payload))
}

func decodeRecord(key, envelope []byte, v interface{}) error {
	payload, err := crypto.Unseal(envelope)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCorrupt, key, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCorrupt, key, err)
	}
	return nil
}

func (s *Store) height() (uint64, error) {
	raw, err := s.db.Get(heightKey)
	if errors.Is(err, db.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: height of %d bytes", ErrCorrupt, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// LoadChain returns the stored blocks in index order.
func (s *Store) LoadChain() ([]core.Block, error) {
	height, err := s.height()
	if err != nil {
		return nil, err
	}

	blocks := make([]core.Block, 0, height)
	for i := uint64(1); i <= height; i++ {
		key := blockKey(i)
		raw, err := s.db.Get(key)
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: block %d missing below height %d",
				ErrCorrupt, i, height)
		}
		if err != nil {
			return nil, err
		}

		var b core.Block
		if err := decodeRecord(key, raw, &b); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}

	log.Debugf("Loaded %d blocks", len(blocks))
	return blocks, nil
}

// LoadPending returns the stored pool.
func (s *Store) LoadPending() ([]core.Transaction, error) {
	raw, err := s.db.Get(pendingKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var pending []core.Transaction
	if err := decodeRecord(pendingKey, raw, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// SavePending overwrites the stored pool.
func (s *Store) SavePending(pending []core.Transaction) error {
	batch := s.db.Batch()
	if err := putRecord(batch, pendingKey, nonNil(pending)); err != nil {
		return err
	}
	return batch.Write()
}

// AppendBlock stores b as the new tip together with the pool that remains.
func (s *Store) AppendBlock(b core.Block, pending []core.Transaction) error {
	batch := s.db.Batch()
	if err := putRecord(batch, blockKey(b.Index), b); err != nil {
		return err
	}
	if err := putRecord(batch, pendingKey, nonNil(pending)); err != nil {
		return err
	}
	if err := batch.Put(heightKey, encodeHeight(b.Index)); err != nil {
		return err
	}
	return batch.Write()
}

// ReplaceChain overwrites the stored chain. The pool is left alone.
func (s *Store) ReplaceChain(blocks []core.Block) error {
	old, err := s.height()
	if err != nil {
		return err
	}

	batch := s.db.Batch()
	for i := range blocks {
		if err := putRecord(batch, blockKey(blocks[i].Index), blocks[i]); err != nil {
			return err
		}
	}
	for i := uint64(len(blocks)) + 1; i <= old; i++ {
		if err := batch.Delete(blockKey(i)); err != nil {
			return err
		}
	}
	if err := batch.Put(heightKey, encodeHeight(uint64(len(blocks)))); err != nil {
		return err
	}

	if err := batch.Write(); err != nil {
		return err
	}

	log.Debugf("Stored replacement chain of %d blocks (was %d)", len(blocks), old)
	return nil
}

// AddPeers records canonical peer addresses in one batch.
func (s *Store) AddPeers(addrs []string) error {
	batch := s.db.Batch()
	for _, addr := range addrs {
		key := append(append([]byte{}, peerPrefix...), addr...)
		if err := batch.Put(key, nil); err != nil {
			return err
		}
	}
	return batch.Write()
}

// LoadPeers returns every stored peer address, sorted.
func (s *Store) LoadPeers() ([]string, error) {
	it, err := s.db.Iterator(peerPrefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var peers []string
	for it.Next() {
		peers = append(peers, string(it.Key()[len(peerPrefix):]))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	sort.Strings(peers)
	return peers, nil
}

func nonNil(pending []core.Transaction) []core.Transaction {
	if pending == nil {
		return []core.Transaction{}
	}
	return pending
}

var _ core.Store = (*Store)(nil)
