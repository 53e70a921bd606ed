// Package cli is the dlnode command tree, grounded on the teacher's
// cmd/xrpld/main.go + internal/cli/{root,server,version}.go pattern: a
// persistent --conf flag read by cobra.OnInitialize, one subcommand per
// operator-facing action.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:     "dlnode",
	Short:   "dlnode - a DLedger peer node",
	Long:    `dlnode runs one peer of a content-centric, gossip-driven DAG ledger fabric.`,
	Version: "0.1.0-dev",
}

// Execute runs the root command; called once from cmd/dlnode/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (TOML)")
}
