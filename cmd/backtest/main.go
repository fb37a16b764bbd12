package main

import (
	"os"

	"github.com/ducminhle1904/dca-ladder-backtest/cmd/backtest/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
