package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/liteforge"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of liteforge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "liteforge version %s\n", strings.TrimSpace(liteforge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
