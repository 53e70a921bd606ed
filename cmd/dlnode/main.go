// Command dlnode runs one peer of a DLedger fabric.
package main

import "github.com/dledger/dlnode/internal/cli"

func main() {
	cli.Execute()
}
