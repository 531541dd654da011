package main

import (
	"os"

	"github.com/torcnet/powchain/cmd/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
