// Package main is the entry point for the loclean CLI.
package main

import (
	"os"

	"github.com/loclean/loclean/cmd/loclean/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
