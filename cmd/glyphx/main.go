package main

import (
	"os"

	"github.com/MEKXH/glyphx/cmd/glyphx/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
