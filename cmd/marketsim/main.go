package main

import (
	"os"

	"github.com/efreitasn/marketsim/cmd/marketsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
