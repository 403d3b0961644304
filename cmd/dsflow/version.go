package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/dsflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of dsflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dsflow version %s\n", strings.TrimSpace(dsflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
