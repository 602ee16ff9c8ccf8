package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var canceledCmd = &cobra.Command{
	Use:   "canceled <execution-id>",
	Short: "Report whether an execution was canceled",
	Long: `Prints the cancel state: canceled, not_canceled or unknown.
The exit status is 0 only for canceled when --exit-code is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		state := rt.Service.ExecutionCancelState(cmd.Context(), args[0])
		fmt.Fprintln(cmd.OutOrStdout(), state)

		if exitCode, _ := cmd.Flags().GetBool("exit-code"); exitCode && !state.Canceled() {
			return fmt.Errorf("execution %s is %s", args[0], state)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(canceledCmd)
	canceledCmd.Flags().Bool("exit-code", false, "Fail unless the execution is canceled")
}
