// Command kbask is the entry point for the knowledge base Q&A agent.
// It provides a CLI interface (via Cobra) and an authenticated HTTP server
// exposing the query endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/kbask/kbask/cmd/kbask/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
