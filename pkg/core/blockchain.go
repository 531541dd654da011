package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

var (
	// ErrStaleCommit is returned when a mined block's parent is no longer
	// the chain tip. The snapshotted transactions stay in the pool.
	ErrStaleCommit = errors.New("stale commit: parent is no longer the chain tip")

	// ErrInvalidProof is returned when a commit carries a proof that does
	// not solve the parent's puzzle.
	ErrInvalidProof = errors.New("invalid proof of work")
)

// Store persists the ledger. Every call must be applied atomically.
type Store interface {
	// LoadChain returns the persisted chain, or nil if none was saved.
	LoadChain() ([]Block, error)

	// LoadPending returns the persisted pool.
	LoadPending() ([]Transaction, error)

	// SavePending overwrites the persisted pool.
	SavePending(pending []Transaction) error

	// AppendBlock stores b and the pool that remains after it in one batch.
	AppendBlock(b Block, pending []Transaction) error

	// ReplaceChain overwrites the stored chain with blocks.
	ReplaceChain(blocks []Block) error
}

// Config holds the dependencies of a Blockchain.
type Config struct {
	// Difficulty is the proof-of-work difficulty. Zero means
	// DefaultDifficulty.
	Difficulty int

	// Clock stamps new blocks. Defaults to the wall clock.
	Clock clock.Clock

	// Store is optional; without it the ledger lives only in memory.
	Store Store
}

// Template is a consistent view of the tip and pool taken before mining.
type Template struct {
	// Parent is the block the new block will extend.
	Parent Block

	// ParentHash is Parent's hash, the value Commit checks the tip against.
	ParentHash string

	// Pending is the pool prefix the new block will consume.
	Pending []Transaction

	// Aborted is closed once the chain is replaced, at which point the
	// template can no longer be committed.
	Aborted <-chan struct{}
}

// Blockchain is the single ledger instance of a node: the chain and the pool
// of pending transactions, guarded by one mutex.
type Blockchain struct {
	mu      sync.Mutex
	chain   []Block
	pending []Transaction
	aborted chan struct{}

	difficulty int
	clock      clock.Clock
	store      Store

	events eventFeed
}

// NewBlockchain creates a ledger, restoring it from cfg.Store when one holds
// a chain and starting from genesis otherwise.
func NewBlockchain(cfg Config) (*Blockchain, error) {
	if cfg.Difficulty == 0 {
		cfg.Difficulty = DefaultDifficulty
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	bc := &Blockchain{
		pending:    make([]Transaction, 0),
		aborted:    make(chan struct{}),
		difficulty: cfg.Difficulty,
		clock:      cfg.Clock,
		store:      cfg.Store,
	}
	bc.events.init()

	if bc.store == nil {
		bc.chain = []Block{GenesisBlock()}
		return bc, nil
	}

	blocks, err := bc.store.LoadChain()
	if err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	if len(blocks) == 0 {
		genesis := GenesisBlock()
		if err := bc.store.AppendBlock(genesis, nil); err != nil {
			return nil, fmt.Errorf("failed to store genesis block: %w", err)
		}
		blocks = []Block{genesis}
	} else if err := ValidateChain(blocks, bc.difficulty); err != nil {
		return nil, fmt.Errorf("stored chain is invalid: %w", err)
	}
	bc.chain = blocks

	pending, err := bc.store.LoadPending()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transactions: %w", err)
	}
	bc.pending = append(bc.pending, pending...)

	log.Infof("Restored chain of %d blocks with %d pending transactions",
		len(bc.chain), len(bc.pending))

	return bc, nil
}

// Difficulty returns the proof-of-work difficulty this ledger enforces.
func (bc *Blockchain) Difficulty() int {
	return bc.difficulty
}

// LastBlock returns the chain tip.
func (bc *Blockchain) LastBlock() Block {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	return bc.chain[len(bc.chain)-1].Clone()
}

// Len returns the number of blocks in the chain.
func (bc *Blockchain) Len() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	return len(bc.chain)
}

// Chain returns a copy of every block.
func (bc *Blockchain) Chain() []Block {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	return cloneBlocks(bc.chain)
}

// Pending returns a copy of the pool.
func (bc *Blockchain) Pending() []Transaction {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	out := make([]Transaction, len(bc.pending))
	copy(out, bc.pending)
	return out
}

// AddTransaction validates tx and appends it to the pool. It returns the
// index of the block the transaction is expected to land in; that is advisory
// only since more transactions may arrive before the next block.
func (bc *Blockchain) AddTransaction(tx Transaction) (uint64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	pending := append(bc.pending[:len(bc.pending):len(bc.pending)], tx)
	if bc.store != nil {
		if err := bc.store.SavePending(pending); err != nil {
			return 0, fmt.Errorf("failed to persist transaction: %w", err)
		}
	}
	bc.pending = pending

	next := bc.chain[len(bc.chain)-1].Index + 1
	log.Debugf("Queued transaction %s -> %s (%v) for block %d",
		tx.Sender, tx.Recipient, tx.Amount, next)

	return next, nil
}

// Snapshot captures the tip and the current pool for a mining attempt.
func (bc *Blockchain) Snapshot() Template {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	pending := make([]Transaction, len(bc.pending))
	copy(pending, bc.pending)

	parent := bc.chain[len(bc.chain)-1].Clone()
	return Template{
		Parent:     parent,
		ParentHash: parent.Hash,
		Pending:    pending,
		Aborted:    bc.aborted,
	}
}

// Commit appends a block built from tmpl and proof, with reward placed first,
// and removes the snapshotted transactions from the pool in the same step.
// It fails with ErrStaleCommit if the tip moved since the snapshot was taken;
// the pool is untouched in that case.
func (bc *Blockchain) Commit(tmpl Template, proof uint64, reward Transaction) (Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	tip := &bc.chain[len(bc.chain)-1]
	if tip.Hash != tmpl.ParentHash || len(tmpl.Pending) > len(bc.pending) {
		log.Debugf("Rejecting block on stale parent %.8s, tip is %.8s",
			tmpl.ParentHash, tip.Hash)
		return Block{}, ErrStaleCommit
	}
	if !ValidProof(tip.Proof, proof, bc.difficulty) {
		return Block{}, fmt.Errorf("%w: %d for last proof %d", ErrInvalidProof,
			proof, tip.Proof)
	}

	txs := make([]Transaction, 0, len(tmpl.Pending)+1)
	txs = append(txs, reward)
	txs = append(txs, tmpl.Pending...)

	remaining := make([]Transaction, len(bc.pending)-len(tmpl.Pending))
	copy(remaining, bc.pending[len(tmpl.Pending):])

	return bc.appendBlockLocked(proof, "", txs, remaining)
}

// appendBlockLocked builds the next block on the tip and installs it along
// with the remaining pool. An empty previousHash means the canonical hash of
// the tip. Must be called with bc.mu held.
func (bc *Blockchain) appendBlockLocked(proof uint64, previousHash string,
	txs []Transaction, remaining []Transaction) (Block, error) {

	last := &bc.chain[len(bc.chain)-1]
	if previousHash == "" {
		previousHash = last.CalculateHash()
	}

	block := Block{
		Index:        last.Index + 1,
		PreviousHash: previousHash,
		Timestamp:    unixSeconds(bc.clock.Now()),
		Transactions: txs,
		Proof:        proof,
	}
	block.Hash = block.CalculateHash()

	if bc.store != nil {
		if err := bc.store.AppendBlock(block, remaining); err != nil {
			return Block{}, fmt.Errorf("failed to persist block %d: %w",
				block.Index, err)
		}
	}

	bc.chain = append(bc.chain, block)
	bc.pending = remaining

	log.Infof("Appended block %d (%.8s) with %d transactions, %d still pending",
		block.Index, block.Hash, len(txs), len(remaining))

	bc.events.publish(Event{
		Type:   EventBlockAppended,
		Block:  block.Clone(),
		Length: len(bc.chain),
	})

	return block.Clone(), nil
}

// ReplaceChain installs candidate if it is valid and strictly longer than
// the local chain. In-flight mining templates are aborted. It reports
// whether the swap happened.
func (bc *Blockchain) ReplaceChain(candidate []Block) (bool, error) {
	if err := ValidateChain(candidate, bc.difficulty); err != nil {
		return false, err
	}
	blocks := cloneBlocks(candidate)

	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(blocks) <= len(bc.chain) {
		return false, nil
	}

	if bc.store != nil {
		if err := bc.store.ReplaceChain(blocks); err != nil {
			return false, fmt.Errorf("failed to persist chain: %w", err)
		}
	}

	prev := len(bc.chain)
	bc.chain = blocks
	close(bc.aborted)
	bc.aborted = make(chan struct{})

	tip := blocks[len(blocks)-1]
	log.Infof("Replaced chain of %d blocks with %d blocks, new tip %.8s",
		prev, len(blocks), tip.Hash)

	bc.events.publish(Event{
		Type:   EventChainReplaced,
		Block:  tip.Clone(),
		Length: len(blocks),
	})

	return true, nil
}

// Subscribe registers for chain events. The returned function cancels the
// subscription. Slow subscribers miss events rather than block the ledger.
func (bc *Blockchain) Subscribe() (<-chan Event, func()) {
	return bc.events.subscribe()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}
