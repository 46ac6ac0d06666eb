// Package main is the entry point for the dpsmeter combat statistics meter.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/dpsmeter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
