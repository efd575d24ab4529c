package main

import (
	"os"

	"github.com/sarth-shah20/quay/cmd"
)

func main() {
	// All logic lives in the cmd package.
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
