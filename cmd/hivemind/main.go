// Package main is the entry point for the hivemind CLI.
package main

import (
	"os"

	"github.com/yordyi/claude-flow-sub006/cmd/hivemind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
