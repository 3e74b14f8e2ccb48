// Package main is the entry point for the tariff CLI.
package main

import (
	"fmt"
	"os"

	"carrier-tariff/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
