package main

import (
	"fmt"

	"github.com/aretw0/chronicle"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of chronicle",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chronicle version %s\n", chronicle.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
