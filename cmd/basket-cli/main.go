package main

import (
	"os"

	"basket/cmd/basket-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
