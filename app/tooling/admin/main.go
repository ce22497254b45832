// This program performs administrative tasks for the ZUX ledger node.
package main

import "github.com/zuxlabs/ammledger/app/tooling/admin/cmd"

func main() {
	cmd.Execute()
}
