package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marketsim",
	Short: "A simulated stock market with live prices and a limit order book",
	Long: `marketsim runs a simulated equity market. Prices move on a fixed cadence
under a random walk with momentum, sentiment, order-flow imbalance and volume
effects; client limit orders rest on per-instrument books and are matched at
the midpoint on a separate cadence; random news events shock prices.

State is served over HTTP and streamed over a websocket. Configuration is read
from the environment (PORT, DB_PATH, PRICING_INTERVAL, ...).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(
		newServeCmd(),
		newHealthcheckCmd(),
		newCatalogCmd(),
	)
}
