package main

import (
	"os"

	"github.com/amsen20/reconf/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
