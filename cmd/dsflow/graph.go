package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/dsflow/internal/presentation/graph"
	"github.com/aretw0/dsflow/internal/workflow"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the workflow steps and routes.
With --run, the steps visited by a stored run are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var overlay *graph.GraphOverlay
		if runID, _ := cmd.Flags().GetString("run"); runID != "" {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, _, closer, err := buildStore(cfg.Store)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			state, err := store.Load(cmd.Context(), runID)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFromState(state)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(workflow.Topology(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Highlight the path taken by a stored run")
}
