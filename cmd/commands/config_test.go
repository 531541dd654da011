package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/db"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()

	v := viper.New()
	require.NoError(t, v.BindPFlags(RootCmd.PersistentFlags()))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func TestNodeConfigDefaults(t *testing.T) {
	cfg, err := nodeConfig(newViper(t))
	require.NoError(t, err)

	require.Equal(t, ":5000", cfg.Listen)
	require.Equal(t, db.Memory, cfg.DBType)
	require.Equal(t, core.DefaultDifficulty, cfg.Difficulty)
	require.Equal(t, 5*time.Second, cfg.PeerTimeout)
	require.Zero(t, cfg.ResolveInterval)
	require.Empty(t, cfg.Seeds)
}

func TestNodeConfigFromEnv(t *testing.T) {
	t.Setenv("POWCHAIN_DB", "pebble")
	t.Setenv("POWCHAIN_RESOLVE_INTERVAL", "30s")
	t.Setenv("POWCHAIN_NODE_ID", "miner-1")

	cfg, err := nodeConfig(newViper(t))
	require.NoError(t, err)
	require.Equal(t, db.PebbleDB, cfg.DBType)
	require.Equal(t, 30*time.Second, cfg.ResolveInterval)
	require.Equal(t, "miner-1", cfg.NodeID)
}

func TestNodeConfigRejects(t *testing.T) {
	tests := map[string]string{
		"POWCHAIN_DB":           "rocksdb",
		"POWCHAIN_DIFFICULTY":   "65",
		"POWCHAIN_PEER_TIMEOUT": "0s",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := nodeConfig(newViper(t))
			require.Error(t, err)
		})
	}
}

func TestGenesisCommand(t *testing.T) {
	var out bytes.Buffer
	genesisCmd.SetOut(&out)
	require.NoError(t, genesisCmd.RunE(genesisCmd, nil))

	var b core.Block
	require.NoError(t, json.Unmarshal(out.Bytes(), &b))
	require.Equal(t, core.GenesisBlock(), b)
}
