// Package main is the entry point for the convarr application.
package main

import (
	"os"

	"github.com/convarr/convarr/cmd/convarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
