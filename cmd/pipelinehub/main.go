// pipelinehub
//
// Process supervisor for the pipeline HTTP API.

package main

import (
	"fmt"
	"os"

	"go.pipelinehub.dev/cmd/pipelinehub/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
