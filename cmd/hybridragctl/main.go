// Command hybridragctl is the operator CLI for the orchestrator: serve runs
// the HTTP server, ingest loads the NDJSON corpus, retry/stats call a
// running server, and reset-snapshot rebuilds the change-detector baseline.
package main

import (
	"fmt"
	"os"

	"github.com/brunobiangulo/hybridrag/cmd/hybridragctl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
