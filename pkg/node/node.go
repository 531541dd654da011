package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/torcnet/powchain/pkg/consensus"
	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/db"
	"github.com/torcnet/powchain/pkg/metrics"
	"github.com/torcnet/powchain/pkg/network"
	"github.com/torcnet/powchain/pkg/rpc"
	"github.com/torcnet/powchain/pkg/store"
)

// Config describes a node.
type Config struct {
	// Listen is the HTTP API address.
	Listen string

	// DataDir holds the database for persistent backends.
	DataDir string

	// DBType selects the storage backend.
	DBType db.DBType

	// Difficulty is the proof-of-work difficulty.
	Difficulty int

	// NodeID is the reward address. Empty means a fresh random id.
	NodeID string

	// PeerTimeout bounds each peer chain fetch.
	PeerTimeout time.Duration

	// MaxFetches bounds concurrent peer fetches.
	MaxFetches int

	// ResolveInterval enables periodic resolution when positive.
	ResolveInterval time.Duration

	// Seeds are registered as peers at startup.
	Seeds []string

	// MaxChainBytes caps a peer's chain response.
	MaxChainBytes int64

	// Clock stamps blocks. Defaults to the wall clock.
	Clock clock.Clock
}

// DefaultConfig returns the configuration of a stand-alone in-memory node.
func DefaultConfig() Config {
	return Config{
		Listen:        ":5000",
		DataDir:       "data",
		DBType:        db.Memory,
		Difficulty:    core.DefaultDifficulty,
		PeerTimeout:   network.DefaultTimeout,
		MaxFetches:    consensus.DefaultMaxFetches,
		MaxChainBytes: network.DefaultMaxChainBytes,
	}
}

// NewNodeID returns a random identifier: a v4 UUID without dashes.
func NewNodeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Node wires the ledger, peer registry, consensus and HTTP API together.
type Node struct {
	cfg Config

	database db.Database
	store    *store.Store
	chain    *core.Blockchain
	registry *network.Registry
	miner    *consensus.Miner
	resolver *consensus.Resolver
	engine   *consensus.Engine
	server   *rpc.Server
	metrics  *metrics.Metrics
}

// New opens storage, restores or seeds the ledger and registers seed peers.
func New(cfg Config) (*Node, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = NewNodeID()
	}
	if cfg.DBType == "" {
		cfg.DBType = db.Memory
	}

	path := ""
	if cfg.DBType != db.Memory {
		path = filepath.Join(cfg.DataDir, "chaindata")
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("unable to create data directory: %w", err)
		}
	}
	database, err := db.Open(cfg.DBType, path)
	if err != nil {
		return nil, err
	}

	n, err := build(cfg, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return n, nil
}

func build(cfg Config, database db.Database) (*Node, error) {
	st := store.New(database)

	chain, err := core.NewBlockchain(core.Config{
		Difficulty: cfg.Difficulty,
		Clock:      cfg.Clock,
		Store:      st,
	})
	if err != nil {
		return nil, err
	}

	registry, err := network.NewRegistry(st)
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterAll(cfg.Seeds); err != nil {
		return nil, fmt.Errorf("invalid seed peer: %w", err)
	}

	m := metrics.New()
	m.RegisterGauge("chain_length", "Blocks in the local chain.",
		func() float64 { return float64(chain.Len()) })
	m.RegisterGauge("pending_transactions", "Transactions waiting in the pool.",
		func() float64 { return float64(len(chain.Pending())) })
	m.RegisterGauge("peers", "Registered peers.",
		func() float64 { return float64(registry.Len()) })

	fetcher := network.NewClient(cfg.PeerTimeout, cfg.MaxChainBytes)
	resolver := consensus.NewResolver(chain, registry, fetcher, cfg.MaxFetches, m)
	miner := consensus.NewMiner(chain, cfg.NodeID, m)

	n := &Node{
		cfg:      cfg,
		database: database,
		store:    st,
		chain:    chain,
		registry: registry,
		miner:    miner,
		resolver: resolver,
		metrics:  m,
		server: rpc.NewServer(rpc.Config{
			Listen:   cfg.Listen,
			NodeID:   cfg.NodeID,
			Chain:    chain,
			Miner:    miner,
			Resolver: resolver,
			Registry: registry,
			Metrics:  m,
		}),
	}

	if cfg.ResolveInterval > 0 {
		n.engine = consensus.NewEngine(resolver,
			ticker.New(cfg.ResolveInterval))
	}

	return n, nil
}

// Start serves the API and, if configured, the periodic resolver.
func (n *Node) Start() error {
	if err := n.server.Start(); err != nil {
		return err
	}
	if n.engine != nil {
		n.engine.Start()
		log.Infof("Resolving against peers every %v", n.cfg.ResolveInterval)
	}

	log.Infof("Node %s started with chain of %d blocks and %d peers",
		n.cfg.NodeID, n.chain.Len(), n.registry.Len())
	return nil
}

// Stop shuts the node down and closes storage.
func (n *Node) Stop(ctx context.Context) error {
	if n.engine != nil {
		n.engine.Stop()
	}
	err := n.server.Stop(ctx)
	n.resolver.Stop()
	if cerr := n.database.Close(); cerr != nil && err == nil {
		err = cerr
	}

	log.Infof("Node %s stopped", n.cfg.NodeID)
	return err
}

// ID returns the node's reward address.
func (n *Node) ID() string {
	return n.cfg.NodeID
}

// Chain returns the node's ledger.
func (n *Node) Chain() *core.Blockchain {
	return n.chain
}

// Registry returns the node's peer registry.
func (n *Node) Registry() *network.Registry {
	return n.registry
}

// Addr returns the API's bound address once started.
func (n *Node) Addr() net.Addr {
	return n.server.Addr()
}
