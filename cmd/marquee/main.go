// Package main is the entry point for the marquee signage player.
package main

import (
	"os"

	"github.com/marqueehq/marquee/cmd/marquee/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
