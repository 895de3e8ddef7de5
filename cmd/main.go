// Command trendbot runs a spot EMA-crossover trading bot that protects every
// entry with an exchange-side stop-loss.
//
// Usage:
//
//	trendbot run --config config.yaml
//	trendbot setup
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY (optional HYPERLIQUID_API_URL)
//
// TRENDBOT_DASHBOARD_TOKEN gates POST /positions/reprotect and is required
// when the dashboard is served on public domains.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
