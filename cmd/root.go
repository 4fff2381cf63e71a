package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "coinflip",
	Short: "Coinflip wager settlement engine",
	Long: `Coinflip accepts heads/tails wagers against a house reserve held in a
fungible-token ledger, resolves them with a committed server seed and pays
winners stake times the configured coefficient.

Wagers settle either in the same request (sync mode) or after a resolver
confirms them (deferred mode).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
