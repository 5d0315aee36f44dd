package main

import (
	"fmt"

	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check workflow definition files",
		Long: `Parse each definition file and build its topology, reporting every
problem found. Exits non-zero if any file is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0

			for _, path := range args {
				def, err := workflow.LoadDefinitionFile(path)
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					failed++
					continue
				}

				topology, err := def.Topology()
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					failed++
					continue
				}

				fmt.Fprintf(out, "ok   %s: %s (%d steps, completes at %s)\n",
					path, topology.EntityType(), len(topology.Steps()), topology.Completed())
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d definitions invalid", failed, len(args))
			}
			return nil
		},
	}
}
