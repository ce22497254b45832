package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// verifyCmd represents the verify command.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Ask the node to re-validate the whole chain.",
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			Valid  bool   `json:"valid"`
			Height uint64 `json:"height"`
			Tip    string `json:"tip"`
			Error  string `json:"error"`
		}

		if err := get("/v1/verify", &resp); err != nil {
			log.Fatal(err)
		}

		fmt.Println(field("height", resp.Height))
		fmt.Println(field("tip", resp.Tip))

		if !resp.Valid {
			fmt.Println(badStyle.Render("chain invalid: " + resp.Error))
			os.Exit(1)
		}

		fmt.Println(okStyle.Render("chain valid"))
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
