package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/torcnet/powchain/pkg/core"
	"github.com/torcnet/powchain/pkg/rpc"
)

var (
	clientNode    string
	clientTimeout time.Duration
)

// clientCmd groups commands that talk to a running node.
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Interact with a running node",
}

func init() {
	flags := clientCmd.PersistentFlags()
	flags.StringVar(&clientNode, "node", "localhost:5000", "Node API address")
	flags.DurationVar(&clientTimeout, "timeout", 5*time.Minute, "Request timeout")

	clientCmd.AddCommand(clientChainCmd)
	clientCmd.AddCommand(clientMineCmd)
	clientCmd.AddCommand(clientSubmitCmd)
	clientCmd.AddCommand(clientRegisterCmd)
	clientCmd.AddCommand(clientResolveCmd)
}

func newClient() *rpc.Client {
	return rpc.NewClient(clientNode, clientTimeout)
}

func renderBlocks(blocks []core.Block) error {
	data := pterm.TableData{{"Index", "Hash", "Previous", "Proof", "Txs"}}
	for _, b := range blocks {
		data = append(data, []string{
			strconv.FormatUint(b.Index, 10),
			short(b.Hash),
			short(b.PreviousHash),
			strconv.FormatUint(b.Proof, 10),
			strconv.Itoa(len(b.Transactions)),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderTransactions(txs []core.Transaction) error {
	data := pterm.TableData{{"Sender", "Recipient", "Amount"}}
	for _, tx := range txs {
		data = append(data, []string{
			tx.Sender, tx.Recipient,
			strconv.FormatFloat(tx.Amount, 'g', -1, 64),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

var clientChainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Show the node's chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, err := newClient().Chain(cmd.Context())
		if err != nil {
			return err
		}
		pterm.Info.Printfln("Chain length %d", chain.Length)
		return renderBlocks(chain.Chain)
	},
}

var clientMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine a block on the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).
			Start("Searching for a proof...")
		block, err := newClient().Mine(cmd.Context())
		spinner.Stop()
		if err != nil {
			return err
		}

		pterm.Success.Printfln("%s: block %d with proof %d", block.Message,
			block.Index, block.Proof)
		return renderTransactions(block.Transactions)
	},
}

var clientSubmitCmd = &cobra.Command{
	Use:   "submit <sender> <recipient> <amount>",
	Short: "Submit a transaction to the node's pool",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[2], err)
		}

		msg, err := newClient().SubmitTransaction(cmd.Context(), args[0], args[1], amount)
		if err != nil {
			return err
		}
		pterm.Success.Println(msg.Message)
		return nil
	},
}

var clientRegisterCmd = &cobra.Command{
	Use:   "register <address>...",
	Short: "Register peers with the node",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().RegisterNodes(cmd.Context(), args)
		if err != nil {
			return err
		}

		pterm.Success.Println(resp.Message)
		items := make([]pterm.BulletListItem, 0, len(resp.TotalNodes))
		for _, n := range resp.TotalNodes {
			items = append(items, pterm.BulletListItem{Level: 0, Text: n})
		}
		return pterm.DefaultBulletList.WithItems(items).Render()
	},
}

var clientResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run consensus on the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Resolve(cmd.Context())
		if err != nil {
			return err
		}
		if resp.Replaced {
			pterm.Warning.Printfln("%s (length %d)", resp.Message, resp.Length)
		} else {
			pterm.Info.Printfln("%s (length %d)", resp.Message, resp.Length)
		}
		return nil
	},
}
