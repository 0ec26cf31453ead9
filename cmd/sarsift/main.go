// Package main provides the entry point for the sarsift CLI.
package main

import (
	"os"

	"github.com/sarsift/sarsift/cmd/sarsift/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
