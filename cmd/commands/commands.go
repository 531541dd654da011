package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/torcnet/powchain/pkg/consensus"
	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/network"
)

// Version is the release of this build.
const Version = "0.1.0"

// EnvPrefix prefixes every environment variable read as configuration.
const EnvPrefix = "POWCHAIN"

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "powchain",
	Short: "powchain - a minimal proof-of-work ledger node",
	Long: `powchain runs a proof-of-work ledger node. Each node keeps a chain of
blocks and a pool of pending transactions, mines blocks on request, and
converges with its registered peers by adopting the longest valid chain.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.String("listen", ":5000", "HTTP API listen address")
	flags.String("data-dir", defaultDataDir(), "Data directory")
	flags.String("db", "memory", "Database backend (memory, leveldb, pebble)")
	flags.Int("difficulty", core.DefaultDifficulty, "Leading hex zeros required of a proof")
	flags.String("node-id", "", "Reward address of this node (random if empty)")
	flags.Duration("peer-timeout", network.DefaultTimeout, "Timeout for a single peer chain fetch")
	flags.Int("max-fetches", consensus.DefaultMaxFetches, "Maximum concurrent peer fetches")
	flags.Duration("resolve-interval", 0, "Resolve against peers on this interval (0 disables)")
	flags.StringSlice("seeds", nil, "Peers to register at startup")
	flags.String("log-level", "info", "Log level, optionally per subsystem (info,CNSS=debug)")
	flags.Int64("max-chain-bytes", network.DefaultMaxChainBytes, "Maximum size of a peer's chain response")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(startCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(genesisCmd)
	RootCmd.AddCommand(clientCmd)
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.powchain"
	}
	return filepath.Join(homeDir, ".powchain")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(viper.GetString("data-dir"))
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "powchain v%s (encoding v%d)\n",
			Version, core.EncodingVersion)
	},
}
