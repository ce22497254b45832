package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/zuxlabs/ammledger/foundation/blockchain/signature"
)

var keyPath string

// keygenCmd represents the keygen command.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new ed25519 key pair.",
	Run: func(cmd *cobra.Command, args []string) {
		pub, priv, err := signature.GenerateKey()
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(field("public key", hexutil.Encode(pub)))

		if keyPath == "" {
			return
		}

		if err := os.WriteFile(keyPath, []byte(hexutil.Encode(priv)), 0600); err != nil {
			log.Fatal(err)
		}
		fmt.Println(field("private key", keyPath))
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keyPath, "out", "o", "", "File to write the private key to.")
}
