package core

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewBlockchainStartsAtGenesis(t *testing.T) {
	bc := newTestChain(t, nil)

	require.Equal(t, 1, bc.Len())
	require.True(t, IsGenesis(&bc.Chain()[0]))
	require.Empty(t, bc.Pending())
}

func TestMineScenario(t *testing.T) {
	bc := newTestChain(t, nil)

	next, err := bc.AddTransaction(Transaction{Sender: "a", Recipient: "b", Amount: 5})
	require.NoError(t, err)
	require.EqualValues(t, 2, next)

	block := mineNext(t, bc, "node-1")

	require.EqualValues(t, 2, block.Index)
	require.Equal(t, genesisHash, block.PreviousHash)
	require.Equal(t, testTime.Unix(), int64(block.Timestamp))
	require.Equal(t, []Transaction{
		{Sender: RewardSender, Recipient: "node-1", Amount: RewardAmount},
		{Sender: "a", Recipient: "b", Amount: 5},
	}, block.Transactions)
	require.True(t, ValidProof(GenesisProof, block.Proof, testDifficulty))
	require.True(t, block.VerifyHash())

	require.Empty(t, bc.Pending())
	require.Equal(t, 2, bc.Len())
	require.Equal(t, block, bc.LastBlock())
	require.NoError(t, ValidateChain(bc.Chain(), testDifficulty))
}

func TestAddTransactionRejectsInvalid(t *testing.T) {
	bc := newTestChain(t, nil)

	_, err := bc.AddTransaction(Transaction{Sender: "a", Recipient: "b", Amount: math.NaN()})
	require.ErrorIs(t, err, ErrInvalidTransaction)
	_, err = bc.AddTransaction(Transaction{Sender: "a", Recipient: "b", Amount: math.Inf(1)})
	require.ErrorIs(t, err, ErrInvalidTransaction)
	require.Empty(t, bc.Pending())
}

func TestAddTransactionAcceptsEmptyParties(t *testing.T) {
	bc := newTestChain(t, nil)

	index, err := bc.AddTransaction(Transaction{Amount: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, index)
	require.Equal(t, []Transaction{{Amount: 1}}, bc.Pending())
}

func TestCommitStaleKeepsPool(t *testing.T) {
	bc := newTestChain(t, nil)
	_, err := bc.AddTransaction(Transaction{Sender: "a", Recipient: "b", Amount: 1})
	require.NoError(t, err)

	stale := bc.Snapshot()
	mineNext(t, bc, "other")

	_, err = bc.AddTransaction(Transaction{Sender: "c", Recipient: "d", Amount: 2})
	require.NoError(t, err)

	_, err = bc.Commit(stale, 226, NewRewardTransaction("node"))
	require.ErrorIs(t, err, ErrStaleCommit)
	require.Equal(t, []Transaction{{Sender: "c", Recipient: "d", Amount: 2}}, bc.Pending())
	require.Equal(t, 2, bc.Len())
}

func TestCommitRejectsBadProof(t *testing.T) {
	bc := newTestChain(t, nil)

	_, err := bc.Commit(bc.Snapshot(), 225, NewRewardTransaction("node"))
	require.ErrorIs(t, err, ErrInvalidProof)
	require.Equal(t, 1, bc.Len())
}

func TestCommitConsumesOnlySnapshottedPrefix(t *testing.T) {
	bc := newTestChain(t, nil)
	first := Transaction{Sender: "a", Recipient: "b", Amount: 1}
	late := Transaction{Sender: "c", Recipient: "d", Amount: 2}

	_, err := bc.AddTransaction(first)
	require.NoError(t, err)
	tmpl := bc.Snapshot()

	// Arrives while the proof is being searched for.
	_, err = bc.AddTransaction(late)
	require.NoError(t, err)

	block, err := bc.Commit(tmpl, 226, NewRewardTransaction("node"))
	require.NoError(t, err)
	require.Len(t, block.Transactions, 2)
	require.Equal(t, first, block.Transactions[1])
	require.Equal(t, []Transaction{late}, bc.Pending())
}

func TestReplaceChain(t *testing.T) {
	longer := buildChain(t, 3, "peer")

	t.Run("longer valid chain wins", func(t *testing.T) {
		bc := newTestChain(t, nil)
		tmpl := bc.Snapshot()

		replaced, err := bc.ReplaceChain(longer)
		require.NoError(t, err)
		require.True(t, replaced)
		require.Equal(t, longer, bc.Chain())

		select {
		case <-tmpl.Aborted:
		default:
			t.Fatal("template was not aborted")
		}

		_, err = bc.Commit(tmpl, 226, NewRewardTransaction("node"))
		require.ErrorIs(t, err, ErrStaleCommit)
	})

	t.Run("equal length is kept", func(t *testing.T) {
		bc := newTestChain(t, nil)
		mineNext(t, bc, "local")
		mineNext(t, bc, "local")
		local := bc.Chain()

		replaced, err := bc.ReplaceChain(longer)
		require.NoError(t, err)
		require.False(t, replaced)
		require.Equal(t, local, bc.Chain())
	})

	t.Run("invalid chain is refused", func(t *testing.T) {
		bc := newTestChain(t, nil)
		tampered := cloneBlocks(longer)
		tampered[1].Transactions[0].Recipient = "thief"

		replaced, err := bc.ReplaceChain(tampered)
		require.Error(t, err)
		require.False(t, replaced)
		require.Equal(t, 1, bc.Len())
	})

	t.Run("pool survives replacement", func(t *testing.T) {
		bc := newTestChain(t, nil)
		tx := Transaction{Sender: "a", Recipient: "b", Amount: 3}
		_, err := bc.AddTransaction(tx)
		require.NoError(t, err)

		_, err = bc.ReplaceChain(longer)
		require.NoError(t, err)
		require.Equal(t, []Transaction{tx}, bc.Pending())
	})
}

func TestChainReturnsCopy(t *testing.T) {
	bc := newTestChain(t, nil)
	mineNext(t, bc, "node")

	chain := bc.Chain()
	chain[1].Transactions[0].Amount = 99

	require.NoError(t, ValidateChain(bc.Chain(), testDifficulty))
}

func TestBlockchainPersistence(t *testing.T) {
	store := &memStore{}
	bc := newTestChain(t, store)
	require.Len(t, store.chain, 1)

	tx := Transaction{Sender: "a", Recipient: "b", Amount: 1}
	_, err := bc.AddTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, []Transaction{tx}, store.pending)

	mineNext(t, bc, "node")
	_, err = bc.AddTransaction(tx)
	require.NoError(t, err)

	restored := newTestChain(t, store)
	require.Equal(t, bc.Chain(), restored.Chain())
	require.Equal(t, []Transaction{tx}, restored.Pending())
}

func TestBlockchainRejectsCorruptStore(t *testing.T) {
	store := &memStore{chain: buildChain(t, 2, "node")}
	store.chain[1].Proof = 0

	_, err := NewBlockchain(Config{Difficulty: testDifficulty, Store: store})
	require.Error(t, err)
}

func TestStoreFailureLeavesStateUntouched(t *testing.T) {
	store := &memStore{}
	bc := newTestChain(t, store)
	store.failErr = errors.New("disk full")

	_, err := bc.AddTransaction(Transaction{Sender: "a", Recipient: "b", Amount: 1})
	require.ErrorIs(t, err, store.failErr)
	require.Empty(t, bc.Pending())

	_, err = bc.Commit(bc.Snapshot(), 226, NewRewardTransaction("node"))
	require.ErrorIs(t, err, store.failErr)
	require.Equal(t, 1, bc.Len())
}

func TestSubscribe(t *testing.T) {
	bc := newTestChain(t, nil)
	events, cancel := bc.Subscribe()
	defer cancel()

	block := mineNext(t, bc, "node")
	ev := <-events
	require.Equal(t, EventBlockAppended, ev.Type)
	require.Equal(t, block, ev.Block)
	require.Equal(t, 2, ev.Length)

	longer := buildChain(t, 4, "peer")
	_, err := bc.ReplaceChain(longer)
	require.NoError(t, err)
	ev = <-events
	require.Equal(t, EventChainReplaced, ev.Type)
	require.Equal(t, 4, ev.Length)

	cancel()
	_, ok := <-events
	require.False(t, ok)
}

// Concurrent submitters and miners must never lose or duplicate a
// transaction.
func TestConcurrentSubmitAndMine(t *testing.T) {
	bc := newTestChain(t, nil)

	const (
		submitters = 4
		perWorker  = 25
		miners     = 3
		rounds     = 4
	)

	var wg sync.WaitGroup
	for w := 0; w < submitters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := bc.AddTransaction(Transaction{
					Sender:    "s",
					Recipient: "r",
					Amount:    float64(w*perWorker + i),
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	for m := 0; m < miners; m++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				tmpl := bc.Snapshot()
				proof := mustMine(tmpl.Parent.Proof)
				_, err := bc.Commit(tmpl, proof, NewRewardTransaction("m"))
				if err != nil && !errors.Is(err, ErrStaleCommit) {
					t.Errorf("commit: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	chain := bc.Chain()
	require.NoError(t, ValidateChain(chain, testDifficulty))

	seen := make(map[float64]int)
	for _, b := range chain[1:] {
		require.True(t, b.Transactions[0].IsReward())
		for _, tx := range b.Transactions[1:] {
			seen[tx.Amount]++
		}
	}
	for _, tx := range bc.Pending() {
		seen[tx.Amount]++
	}

	require.Len(t, seen, submitters*perWorker)
	for amount, n := range seen {
		require.Equal(t, 1, n, "amount %v", amount)
	}
}

func TestPoolConservationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bc := newTestChain(t, nil)
		submitted := 0

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 20).Draw(rt, "ops")
		for _, op := range ops {
			switch op {
			case 0, 1:
				submitted++
				if _, err := bc.AddTransaction(Transaction{
					Sender: "s", Recipient: "r", Amount: float64(submitted),
				}); err != nil {
					rt.Fatalf("add: %v", err)
				}
			case 2:
				tmpl := bc.Snapshot()
				if _, err := bc.Commit(tmpl, mustMine(tmpl.Parent.Proof),
					NewRewardTransaction("m")); err != nil {
					rt.Fatalf("commit: %v", err)
				}
			}
		}

		inBlocks := 0
		for _, b := range bc.Chain()[1:] {
			inBlocks += len(b.Transactions) - 1
		}
		if inBlocks+len(bc.Pending()) != submitted {
			rt.Fatalf("%d in blocks + %d pending != %d submitted",
				inBlocks, len(bc.Pending()), submitted)
		}
	})
}

func mustMine(lastProof uint64) uint64 {
	for p := uint64(0); ; p++ {
		if ValidProof(lastProof, p, testDifficulty) {
			return p
		}
	}
}
