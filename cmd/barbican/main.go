package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"github.com/openstack-tools/barbican-cli/cmd/barbican/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Wipe any remaining credential enclaves on exit.
	defer memguard.Purge()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		memguard.Purge()
		os.Exit(1)
	}
}

func run() error {
	rootCmd := commands.NewRootCommand(
		fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))
	return rootCmd.Execute()
}
