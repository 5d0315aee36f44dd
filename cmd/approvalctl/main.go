// approvalctl scaffolds and validates approval workflow definitions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "approvalctl",
		Short: "Manage approval workflow definitions",
		Long: `approvalctl scaffolds new approval workflow definitions and validates
existing ones before they are loaded by the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newNewCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "approvalctl %s (commit: %s)\n", version, commit)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
