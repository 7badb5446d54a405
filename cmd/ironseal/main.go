package main

import (
	"github.com/awnumar/memguard"

	"github.com/jmcleod/ironseal/cmd/ironseal/cmd"
)

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := cmd.Execute(); err != nil {
		memguard.SafeExit(1)
	}
}
