// Package main is the entry point for the ffwrap command.
package main

import (
	"os"

	"github.com/jmylchreest/ffwrap/cmd/ffwrap/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
