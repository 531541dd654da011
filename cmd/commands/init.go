package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initForce bool

// initCmd writes the effective configuration to <data-dir>/config.yaml.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file to the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := viper.GetString("data-dir")
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("unable to create data directory: %w", err)
		}

		path := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		if _, err := nodeConfig(viper.GetViper()); err != nil {
			return err
		}
		if err := viper.WriteConfigAs(path); err != nil {
			return fmt.Errorf("unable to write config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}
