// Package main provides the entry point for the chroma-mcp server and CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/raphaelgruber/chroma-mcp/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, cli.ErrToolFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
