package main

import (
	"os"

	"github.com/aretw0/chronicle/internal/cli"
	"github.com/aretw0/chronicle/internal/presentation/tui"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/spf13/cobra"
)

var descendantsCmd = &cobra.Command{
	Use:   "descendants <execution-id>",
	Short: "List the executions below a root",
	Long: `Walks the lineage tree below the given execution.

Formats:
- json (default): the descendant records in traversal order
- tree: a Markdown outline, styled when printing to a terminal
- mermaid: a flowchart of the lineage`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")
		orderKey, _ := cmd.Flags().GetString("order")
		formatName, _ := cmd.Flags().GetString("format")

		format, err := cli.ParseFormat(formatName)
		if err != nil {
			return err
		}

		rt, _, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		descendants, err := rt.Service.GetDescendants(ctx, args[0], depth, domain.ParseDescendantOrder(orderKey))
		if err != nil {
			return err
		}
		if format == cli.FormatJSON {
			return cli.WriteJSON(cmd.OutOrStdout(), descendants)
		}

		root, err := rt.Service.GetExecution(ctx, args[0])
		if err != nil {
			return err
		}
		render := func(md string) (string, error) { return tui.RenderFor(os.Stdout, md) }
		return cli.WriteLineage(cmd.OutOrStdout(), format, root, descendants, render)
	},
}

func init() {
	rootCmd.AddCommand(descendantsCmd)
	descendantsCmd.Flags().Int("depth", domain.Unbounded, "Maximum depth below the root (negative for unbounded)")
	descendantsCmd.Flags().String("order", "default", "Result order: default or sorted")
	descendantsCmd.Flags().StringP("format", "f", "json", "Output format: json, tree or mermaid")
}
