package main

import (
	"github.com/aretw0/chronicle/internal/cli"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Print one execution record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		exec, err := rt.Service.GetExecution(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return cli.WriteJSON(cmd.OutOrStdout(), exec)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
