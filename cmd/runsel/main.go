// Package main is the entry point for the runsel CLI.
package main

import (
	"os"

	"github.com/runger/runsel/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
