package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/zuxlabs/ammledger/business/core/explorer"
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/state"
)

var (
	snapFile string
	snapOut  string
	snapTop  int
)

// snapshotCmd represents the snapshot command.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show a snapshot of the ledger, the pool and the accounts.",
	Run: func(cmd *cobra.Command, args []string) {
		var snap state.Snapshot
		switch snapFile {
		case "":
			if err := get("/v1/snapshot", &snap); err != nil {
				log.Fatal(err)
			}
		default:
			var err error
			if snap, err = explorer.Read(snapFile); err != nil {
				log.Fatal(err)
			}
		}

		if snapOut != "" {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				log.Fatal(err)
			}
			if err := os.WriteFile(snapOut, data, 0600); err != nil {
				log.Fatal(err)
			}
		}

		fmt.Println(renderSnapshot(snap, snapTop))
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&snapFile, "file", "f", "", "Read an exported snapshot instead of calling the node.")
	snapshotCmd.Flags().StringVarP(&snapOut, "out", "o", "", "File to write the snapshot JSON to.")
	snapshotCmd.Flags().IntVarP(&snapTop, "top", "t", 10, "Number of accounts to list.")
}

func renderSnapshot(snap state.Snapshot, top int) string {
	chain := []string{
		titleStyle.Render("Chain"),
		field("network", snap.Network),
		field("height", snap.Height),
		field("tip", snap.TipHash),
	}

	pool := []string{titleStyle.Render("Pool")}
	if p := snap.Pool; p == nil {
		pool = append(pool, badStyle.Render("not created"))
	} else {
		pool = append(pool,
			field("ZUX", p.ReserveBase),
			field("USDZ", p.ReserveQuote),
			field("price", p.Price),
			field("k", p.K),
			field("swaps", p.Lifetime.Swaps),
			field("volume", p.Lifetime.Volume),
			field("fees", p.Lifetime.Fees),
			field("utilization", p.Utilization),
		)
	}

	accounts := []string{titleStyle.Render(fmt.Sprintf("Accounts (%d)", len(snap.Accounts)))}
	for i, acct := range snap.Accounts {
		if i == top {
			accounts = append(accounts, labelStyle.Render("..."))
			break
		}

		line := fmt.Sprintf("%s ZUX %s USDZ", fmtValue(acct.Balances[database.ZUX]), fmtValue(acct.Balances[database.USDZ]))
		if acct.Tier != "" {
			line += " " + acct.Tier
		}
		accounts = append(accounts, field(string(acct.Address), line))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Render(strings.Join(chain, "\n")),
		panelStyle.Render(strings.Join(pool, "\n")),
		panelStyle.Render(strings.Join(accounts, "\n")),
	)
}
