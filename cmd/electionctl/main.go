// Command electionctl is the operator/demo CLI for the election engine:
// a single self-contained binary that wires every collaborator together
// and drives a full election scenario.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "electionctl",
	Short: "Operate and demonstrate the end-to-end verifiable election engine",
}

func main() {
	rootCmd.AddCommand(demoCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "electionctl: %v\n", err)
		os.Exit(1)
	}
}
