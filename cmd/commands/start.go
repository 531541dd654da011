package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/torcnet/powchain/pkg/logging"
	"github.com/torcnet/powchain/pkg/node"
)

const shutdownTimeout = 10 * time.Second

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the powchain node",
	RunE: func(cmd *cobra.Command, args []string) error {
		logs := logging.NewManager(os.Stdout)
		if err := logs.SetLevels(viper.GetString("log-level")); err != nil {
			return err
		}

		cfg, err := nodeConfig(viper.GetViper())
		if err != nil {
			return err
		}

		n, err := node.New(cfg)
		if err != nil {
			return err
		}
		if err := n.Start(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
			syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			shutdownTimeout)
		defer cancel()
		return n.Stop(shutdownCtx)
	},
}
