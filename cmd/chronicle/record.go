package main

import (
	"io"
	"os"

	"github.com/aretw0/chronicle/internal/cli"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [file]",
	Short: "Create or update executions from live action JSON",
	Long: `Reads one live action object or an array of them from a file, or from
Stdin when no file (or "-") is given, and records each in order.

Modes:
- auto (default): update the record of a known live action, create otherwise
- create: always create a new record
- update: only update existing records

Concurrency: the memory and file backends are single process. Run only one
recorder at a time against a file store directory. Use the sqlite backend for
several recorders on one host, or redis with a distributed lock across hosts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		publish, _ := cmd.Flags().GetBool("publish")

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		lives, err := cli.ReadLiveActions(in)
		if err != nil {
			return err
		}

		rt, _, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		results, recordErr := cli.Record(cmd.Context(), rt.Service, lives, mode, publish)
		if err := cli.WriteJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
		return recordErr
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().String("mode", cli.ModeAuto, "Record mode: auto, create or update")
	recordCmd.Flags().Bool("publish", true, "Publish change events for the writes")
}
