package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/metrics"
	"github.com/torcnet/powchain/pkg/network"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxFetches bounds how many peers are queried at once.
const DefaultMaxFetches = 8

// PeerLister supplies the peers to poll, in a stable order.
type PeerLister interface {
	List() []string
}

// Result summarizes one resolution round.
type Result struct {
	// Replaced is true if the local chain was swapped for a peer's.
	Replaced bool

	// Length is the local chain length after the round.
	Length int

	// Source is the peer whose chain was adopted, if any.
	Source string

	// Polled, Failed and Invalid count peers queried, peers that could
	// not be fetched, and peers whose chain failed validation.
	Polled  int
	Failed  int
	Invalid int
}

// ErrResolverStopped is returned once the resolver has been shut down.
var ErrResolverStopped = errors.New("resolver stopped")

// Resolver implements longest-valid-chain consensus against registered
// peers.
type Resolver struct {
	chain      *core.Blockchain
	peers      PeerLister
	fetcher    network.ChainFetcher
	maxFetches int
	metrics    *metrics.Metrics

	group singleflight.Group

	// quit is cancelled by Stop. Rounds derive their context from it, not
	// from any one caller.
	quit   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewResolver creates a resolver. maxFetches <= 0 selects DefaultMaxFetches.
func NewResolver(chain *core.Blockchain, peers PeerLister,
	fetcher network.ChainFetcher, maxFetches int,
	m *metrics.Metrics) *Resolver {

	if maxFetches <= 0 {
		maxFetches = DefaultMaxFetches
	}
	if m == nil {
		m = metrics.New()
	}
	quit, cancel := context.WithCancel(context.Background())
	return &Resolver{
		chain:      chain,
		peers:      peers,
		fetcher:    fetcher,
		maxFetches: maxFetches,
		metrics:    m,
		quit:       quit,
		cancel:     cancel,
	}
}

// Stop cancels any in-flight round, waits for it to return and rejects
// further rounds.
func (r *Resolver) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// RoundTimeout is the budget of a round polling n peers: one fetch timeout
// per wave of maxFetches concurrent fetches, plus one for slack.
func (r *Resolver) RoundTimeout(n int) time.Duration {
	waves := (n + r.maxFetches - 1) / r.maxFetches
	return r.fetcher.Timeout() * time.Duration(waves+1)
}

type candidate struct {
	blocks  []core.Block
	failed  bool
	invalid bool
}

// Resolve polls every peer and adopts the longest valid chain that is
// strictly longer than the local one. Ties go to the peer that sorts first.
// Unreachable peers and invalid chains are skipped.
//
// Concurrent callers share a single round. The round runs on its own
// budget, so ctx only bounds how long this caller waits for it.
func (r *Resolver) Resolve(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	ch := r.group.DoChan("resolve", func() (interface{}, error) {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return Result{}, ErrResolverStopped
		}
		r.wg.Add(1)
		r.mu.Unlock()
		defer r.wg.Done()

		return r.resolve()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		if res.Shared {
			log.Debugf("Joined in-flight resolution round")
		}
		return res.Val.(Result), nil

	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r *Resolver) resolve() (Result, error) {
	r.metrics.Resolutions.Inc()

	peers := r.peers.List()
	candidates := make([]candidate, len(peers))
	difficulty := r.chain.Difficulty()

	ctx, cancel := context.WithTimeout(r.quit, r.RoundTimeout(len(peers)))
	defer cancel()

	var g errgroup.Group
	g.SetLimit(r.maxFetches)
	for i, addr := range peers {
		i, addr := i, addr
		g.Go(func() error {
			blocks, err := r.fetcher.FetchChain(ctx, addr)
			if err != nil {
				log.Warnf("Unable to fetch chain from %s: %v", addr, err)
				candidates[i].failed = true
				return nil
			}
			if err := core.ValidateChain(blocks, difficulty); err != nil {
				log.Warnf("Discarding chain from %s: %v", addr, err)
				candidates[i].invalid = true
				return nil
			}
			candidates[i].blocks = blocks
			return nil
		})
	}
	_ = g.Wait()

	// Fetches that ran out of budget count as unreachable. Only shutdown
	// abandons the round.
	if r.quit.Err() != nil {
		return Result{}, ErrResolverStopped
	}

	res := Result{Polled: len(peers)}
	best := -1
	bestLen := r.chain.Len()
	for i := range candidates {
		c := &candidates[i]
		switch {
		case c.failed:
			res.Failed++
			r.metrics.PeerFetchFailures.Inc()
		case c.invalid:
			res.Invalid++
			r.metrics.InvalidPeerChains.Inc()
		case len(c.blocks) > bestLen:
			best, bestLen = i, len(c.blocks)
		}
	}

	if best >= 0 {
		replaced, err := r.chain.ReplaceChain(candidates[best].blocks)
		if err != nil {
			return Result{}, fmt.Errorf("unable to adopt chain from %s: %w",
				peers[best], err)
		}
		if replaced {
			res.Replaced = true
			res.Source = peers[best]
			r.metrics.ChainReplacements.Inc()
		}
	}
	res.Length = r.chain.Len()

	log.Infof("Resolved against %d peers (%d unreachable, %d invalid): "+
		"replaced=%v length=%d", res.Polled, res.Failed, res.Invalid,
		res.Replaced, res.Length)

	return res, nil
}
