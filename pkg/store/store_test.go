package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/db"
)

const testDifficulty = 2

func openStore(t *testing.T, typ db.DBType, dir string) *Store {
	t.Helper()

	database, err := db.Open(typ, dir)
	require.NoError(t, err)
	return New(database)
}

func mineBlock(t *testing.T, bc *core.Blockchain) core.Block {
	t.Helper()

	tmpl := bc.Snapshot()
	proof, err := core.Mine(context.Background(), tmpl.Parent.Proof, bc.Difficulty())
	require.NoError(t, err)
	b, err := bc.Commit(tmpl, proof, core.NewRewardTransaction("node"))
	require.NoError(t, err)
	return b
}

func TestStoreRestoresLedger(t *testing.T) {
	for _, typ := range []db.DBType{db.LevelDB, db.PebbleDB} {
		t.Run(string(typ), func(t *testing.T) {
			dir := t.TempDir()

			s := openStore(t, typ, dir)
			bc, err := core.NewBlockchain(core.Config{Difficulty: testDifficulty, Store: s})
			require.NoError(t, err)

			_, err = bc.AddTransaction(core.Transaction{Sender: "a", Recipient: "b", Amount: 1})
			require.NoError(t, err)
			mineBlock(t, bc)
			_, err = bc.AddTransaction(core.Transaction{Sender: "c", Recipient: "d", Amount: 2})
			require.NoError(t, err)
			require.NoError(t, s.AddPeers([]string{"10.0.0.2:5000", "10.0.0.1:5000"}))
			require.NoError(t, s.Close())

			s = openStore(t, typ, dir)
			defer s.Close()
			restored, err := core.NewBlockchain(core.Config{Difficulty: testDifficulty, Store: s})
			require.NoError(t, err)

			require.Equal(t, bc.Chain(), restored.Chain())
			require.Equal(t, bc.Pending(), restored.Pending())

			peers, err := s.LoadPeers()
			require.NoError(t, err)
			require.Equal(t, []string{"10.0.0.1:5000", "10.0.0.2:5000"}, peers)
		})
	}
}

func TestStoreReplaceChainTruncates(t *testing.T) {
	s := openStore(t, db.Memory, "")

	source, err := core.NewBlockchain(core.Config{Difficulty: testDifficulty})
	require.NoError(t, err)
	for source.Len() < 4 {
		mineBlock(t, source)
	}
	long := source.Chain()

	require.NoError(t, s.ReplaceChain(long))
	require.NoError(t, s.ReplaceChain(long[:2]))

	blocks, err := s.LoadChain()
	require.NoError(t, err)
	require.Equal(t, long[:2], blocks)

	has, err := s.db.Has(blockKey(3))
	require.NoError(t, err)
	require.False(t, has)
}

func TestStoreDetectsCorruption(t *testing.T) {
	s := openStore(t, db.Memory, "")
	require.NoError(t, s.AppendBlock(core.GenesisBlock(), nil))

	raw, err := s.db.Get(blockKey(1))
	require.NoError(t, err)
	raw[len(raw)-2] ^= 0x01
	require.NoError(t, s.db.Put(blockKey(1), raw))

	_, err = s.LoadChain()
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestStoreEmpty(t *testing.T) {
	s := openStore(t, db.Memory, "")

	blocks, err := s.LoadChain()
	require.NoError(t, err)
	require.Empty(t, blocks)

	pending, err := s.LoadPending()
	require.NoError(t, err)
	require.Empty(t, pending)

	peers, err := s.LoadPeers()
	require.NoError(t, err)
	require.Empty(t, peers)
}
