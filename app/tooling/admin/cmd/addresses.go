package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
)

var (
	addrCount      int
	addrMultiplier uint64
	addrOffset     uint64
	addrInvert     string
)

// addressesCmd represents the addresses command.
var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "Generate account addresses or find the counter behind one.",
	Run: func(cmd *cobra.Command, args []string) {
		gen, err := generator()
		if err != nil {
			log.Fatal(err)
		}

		if addrInvert != "" {
			idx, err := gen.Index(identity.Address(addrInvert))
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(field("address", addrInvert))
			fmt.Println(field("counter", idx))
			return
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("%d addresses", addrCount)))
		for i := range addrCount {
			addr, err := gen.Next()
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(field(fmt.Sprintf("%d", i), addr))
		}
	},
}

func init() {
	rootCmd.AddCommand(addressesCmd)
	addressesCmd.Flags().IntVarP(&addrCount, "count", "n", 10, "Number of addresses to generate.")
	addressesCmd.Flags().Uint64VarP(&addrMultiplier, "multiplier", "a", 0, "Multiplier of the permutation, random when zero.")
	addressesCmd.Flags().Uint64VarP(&addrOffset, "offset", "b", 0, "Offset of the permutation.")
	addressesCmd.Flags().StringVarP(&addrInvert, "invert", "i", "", "Address to invert back to its counter.")
}

func generator() (*identity.Generator, error) {
	if addrMultiplier == 0 {
		return identity.NewGenerator()
	}

	return identity.NewGeneratorFromParams(addrMultiplier, addrOffset)
}
