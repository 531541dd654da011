package commands

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/torcnet/powchain/pkg/db"
	"github.com/torcnet/powchain/pkg/node"
)

// nodeConfig builds a node configuration from flags, environment and the
// config file, in viper's usual precedence.
func nodeConfig(v *viper.Viper) (node.Config, error) {
	cfg := node.Config{
		Listen:          v.GetString("listen"),
		DataDir:         v.GetString("data-dir"),
		DBType:          db.DBType(v.GetString("db")),
		Difficulty:      v.GetInt("difficulty"),
		NodeID:          v.GetString("node-id"),
		PeerTimeout:     v.GetDuration("peer-timeout"),
		MaxFetches:      v.GetInt("max-fetches"),
		ResolveInterval: v.GetDuration("resolve-interval"),
		Seeds:           v.GetStringSlice("seeds"),
		MaxChainBytes:   v.GetInt64("max-chain-bytes"),
	}

	switch cfg.DBType {
	case db.Memory, db.LevelDB, db.PebbleDB:
	default:
		return node.Config{}, fmt.Errorf("unsupported db %q", cfg.DBType)
	}
	if cfg.Difficulty < 1 || cfg.Difficulty > 64 {
		return node.Config{}, fmt.Errorf("difficulty must be within 1..64, got %d",
			cfg.Difficulty)
	}
	if cfg.PeerTimeout <= 0 {
		return node.Config{}, fmt.Errorf("peer-timeout must be positive")
	}
	if cfg.ResolveInterval < 0 {
		return node.Config{}, fmt.Errorf("resolve-interval must not be negative")
	}

	return cfg, nil
}
