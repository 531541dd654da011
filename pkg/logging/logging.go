package logging

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btclog/v2"
	"github.com/torcnet/powchain/pkg/consensus"
	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/network"
	"github.com/torcnet/powchain/pkg/node"
	"github.com/torcnet/powchain/pkg/rpc"
	"github.com/torcnet/powchain/pkg/store"
)

// SubLoggers is a map of subsystem loggers keyed by their subsystem name.
type SubLoggers map[string]btclog.Logger

// Manager owns the shared log handler and one logger per subsystem.
type Manager struct {
	mu      sync.Mutex
	handler btclog.Handler
	loggers SubLoggers
}

// NewManager creates a manager writing to w and wires every package's
// logger to it.
func NewManager(w io.Writer, opts ...btclog.HandlerOption) *Manager {
	m := &Manager{
		handler: btclog.NewDefaultHandler(w, opts...),
		loggers: make(SubLoggers),
	}

	core.UseLogger(m.Logger(core.Subsystem))
	consensus.UseLogger(m.Logger(consensus.Subsystem))
	network.UseLogger(m.Logger(network.Subsystem))
	node.UseLogger(m.Logger(node.Subsystem))
	rpc.UseLogger(m.Logger(rpc.Subsystem))
	store.UseLogger(m.Logger(store.Subsystem))

	return m
}

// Logger returns the logger for subsystem, creating it on first use.
func (m *Manager) Logger(subsystem string) btclog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.loggers[subsystem]; ok {
		return l
	}
	l := btclog.NewSLogger(m.handler.SubSystem(subsystem))
	m.loggers[subsystem] = l
	return l
}

// SupportedSubsystems returns the registered subsystem names, sorted.
func (m *Manager) SupportedSubsystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.loggers))
	for s := range m.loggers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SetLevels applies levels such as "info" or "info,CNSS=debug". A
// bare level applies to every subsystem; subsystem=level pairs override it.
func (m *Manager) SetLevels(levels string) error {
	parts := strings.Split(levels, ",")

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if !strings.Contains(part, "=") {
			level, ok := btclog.LevelFromString(part)
			if !ok {
				return fmt.Errorf("invalid log level %q", part)
			}
			for _, l := range m.loggers {
				l.SetLevel(level)
			}
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		logger, ok := m.loggers[kv[0]]
		if !ok {
			return fmt.Errorf("unknown subsystem %q", kv[0])
		}
		level, ok := btclog.LevelFromString(kv[1])
		if !ok {
			return fmt.Errorf("invalid log level %q for %s", kv[1], kv[0])
		}
		logger.SetLevel(level)
	}

	return nil
}
