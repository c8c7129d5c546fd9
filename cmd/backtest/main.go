package main

import (
	"os"

	"TradeDesk/internal/cli"
)

func main() {
	if err := cli.NewBacktestCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
