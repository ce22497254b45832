// Package cmd contains the admin commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zuxlabs/ammledger/business/web/errs"
)

var nodeURL string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative tasks for the ZUX ledger",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Url of the node.")
}

// get calls the node and decodes the JSON response into val.
func get(path string, val any) error {
	client := http.Client{Timeout: 30 * time.Second}

	resp, err := client.Get(nodeURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er errs.Response
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			return fmt.Errorf("%s: %s", path, resp.Status)
		}
		return fmt.Errorf("%s: %s: %s", path, resp.Status, er.Error)
	}

	return json.NewDecoder(resp.Body).Decode(val)
}
