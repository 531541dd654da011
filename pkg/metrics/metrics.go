package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powchain"

// Metrics holds the node's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	BlocksMined       prometheus.Counter
	StaleCommits      prometheus.Counter
	TransactionsAdded prometheus.Counter
	Resolutions       prometheus.Counter
	ChainReplacements prometheus.Counter
	PeerFetchFailures prometheus.Counter
	InvalidPeerChains prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		BlocksMined: counter("blocks_mined_total",
			"Blocks mined and appended by this node."),
		StaleCommits: counter("stale_commits_total",
			"Mined blocks discarded because the tip moved."),
		TransactionsAdded: counter("transactions_added_total",
			"Transactions accepted into the pool."),
		Resolutions: counter("resolutions_total",
			"Consensus resolution rounds run."),
		ChainReplacements: counter("chain_replacements_total",
			"Times the local chain was replaced by a peer's."),
		PeerFetchFailures: counter("peer_fetch_failures_total",
			"Peer chain fetches that failed or timed out."),
		InvalidPeerChains: counter("invalid_peer_chains_total",
			"Peer chains discarded by validation."),
	}

	m.registry.MustRegister(
		m.BlocksMined, m.StaleCommits, m.TransactionsAdded,
		m.Resolutions, m.ChainReplacements, m.PeerFetchFailures,
		m.InvalidPeerChains,
		prometheus.NewGoCollector(),
	)

	return m
}

// RegisterGauge exposes a value sampled on every scrape.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, fn))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and embedding.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
