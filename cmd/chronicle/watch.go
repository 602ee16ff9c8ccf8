package main

import (
	"github.com/aretw0/chronicle/internal/cli"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the execution change feed",
	Long: `Prints one line per change event until interrupted.
With the redis backend this follows writes from every chronicle process
sharing the server; other backends only see writes of this process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		executionID, _ := cmd.Flags().GetString("execution")
		rawKinds, _ := cmd.Flags().GetString("kind")
		asJSON, _ := cmd.Flags().GetBool("json")

		kinds, err := cli.ParseKinds(rawKinds)
		if err != nil {
			return err
		}

		rt, _, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		if !asJSON {
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Watching change feed. Press Ctrl+C to stop.")
		}
		return cli.Watch(sigCtx, rt.Subscriber, cmd.OutOrStdout(), cli.WatchOptions{
			ExecutionID: executionID,
			Kinds:       kinds,
			JSON:        asJSON,
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("execution", "", "Only show events of this execution id")
	watchCmd.Flags().String("kind", "", "Comma separated change kinds: created, updated")
	watchCmd.Flags().Bool("json", false, "Print events as JSON lines")
}
