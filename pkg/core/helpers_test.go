package core

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const testDifficulty = 2

var testTime = time.Unix(1700000000, 0)

func newTestChain(t *testing.T, store Store) *Blockchain {
	t.Helper()

	bc, err := NewBlockchain(Config{
		Difficulty: testDifficulty,
		Clock:      clock.NewTestClock(testTime),
		Store:      store,
	})
	require.NoError(t, err)
	return bc
}

// mineNext runs one full snapshot, mine, commit cycle.
func mineNext(t *testing.T, bc *Blockchain, nodeID string) Block {
	t.Helper()

	tmpl := bc.Snapshot()
	proof, err := Mine(context.Background(), tmpl.Parent.Proof, bc.Difficulty())
	require.NoError(t, err)

	block, err := bc.Commit(tmpl, proof, NewRewardTransaction(nodeID))
	require.NoError(t, err)
	return block
}

// buildChain returns a valid chain of n blocks, genesis included.
func buildChain(t *testing.T, n int, nodeID string) []Block {
	t.Helper()

	bc := newTestChain(t, nil)
	for bc.Len() < n {
		mineNext(t, bc, nodeID)
	}
	return bc.Chain()
}

// memStore is an in-memory Store that records how often it was written.
type memStore struct {
	chain   []Block
	pending []Transaction
	writes  int
	failErr error
}

func (m *memStore) LoadChain() ([]Block, error) {
	return cloneBlocks(m.chain), nil
}

func (m *memStore) LoadPending() ([]Transaction, error) {
	return append([]Transaction(nil), m.pending...), nil
}

func (m *memStore) SavePending(pending []Transaction) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.writes++
	m.pending = append([]Transaction(nil), pending...)
	return nil
}

func (m *memStore) AppendBlock(b Block, pending []Transaction) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.writes++
	m.chain = append(m.chain, b.Clone())
	m.pending = append([]Transaction(nil), pending...)
	return nil
}

func (m *memStore) ReplaceChain(blocks []Block) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.writes++
	m.chain = cloneBlocks(blocks)
	return nil
}
