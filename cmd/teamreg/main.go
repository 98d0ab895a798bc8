package main

import (
	"os"
)

var version = "dev"

// main hands off to cobra; every subcommand wires its own dependencies
// through app.go so business logic stays in internal packages.
func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
