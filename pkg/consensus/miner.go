package consensus

import (
	"context"
	"errors"
	"fmt"

	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/metrics"
)

// MaxMineAttempts is how many times a mining request restarts after its
// parent was superseded.
const MaxMineAttempts = 3

// ErrMiningSuperseded is returned when every attempt lost its parent to a
// newer block.
var ErrMiningSuperseded = errors.New("mining superseded by chain updates")

// Miner turns the pool into blocks.
type Miner struct {
	chain   *core.Blockchain
	nodeID  string
	metrics *metrics.Metrics
}

// NewMiner creates a miner that credits rewards to nodeID.
func NewMiner(chain *core.Blockchain, nodeID string, m *metrics.Metrics) *Miner {
	if m == nil {
		m = metrics.New()
	}
	return &Miner{
		chain:   chain,
		nodeID:  nodeID,
		metrics: m,
	}
}

// MineBlock searches for a proof over a snapshot of the tip and pool and
// commits the resulting block. If the chain is replaced mid-search or
// another block lands first, it starts over on the new tip.
func (m *Miner) MineBlock(ctx context.Context) (core.Block, error) {
	for attempt := 1; attempt <= MaxMineAttempts; attempt++ {
		block, err := m.attempt(ctx)
		switch {
		case err == nil:
			m.metrics.BlocksMined.Inc()
			return block, nil

		case errors.Is(err, core.ErrStaleCommit):
			m.metrics.StaleCommits.Inc()
			log.Debugf("Mining attempt %d superseded, retrying", attempt)

		default:
			return core.Block{}, err
		}
	}

	return core.Block{}, fmt.Errorf("%w after %d attempts",
		ErrMiningSuperseded, MaxMineAttempts)
}

func (m *Miner) attempt(ctx context.Context) (core.Block, error) {
	tmpl := m.chain.Snapshot()

	mineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-tmpl.Aborted:
			cancel()
		case <-mineCtx.Done():
		}
	}()

	proof, err := core.Mine(mineCtx, tmpl.Parent.Proof, m.chain.Difficulty())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Block{}, ctxErr
		}
		return core.Block{}, core.ErrStaleCommit
	}

	log.Debugf("Found proof %d for block %d", proof, tmpl.Parent.Index+1)

	return m.chain.Commit(tmpl, proof, core.NewRewardTransaction(m.nodeID))
}
