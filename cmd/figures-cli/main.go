package main

import (
	"fmt"
	"os"

	"github.com/spherical-ai/spherical/libs/figure-service/cmd/figures-cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
