package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/torcnet/powchain/pkg/core"
)

// genesisCmd prints the fixed genesis block every node starts from.
var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Print the genesis block",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(core.GenesisBlock())
	},
}
