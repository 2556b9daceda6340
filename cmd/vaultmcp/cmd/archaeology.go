package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultmcp/vaultmcp/internal/ui"
)

// newArchaeologyCmd creates the archaeology command.
func newArchaeologyCmd(flags *rootFlags) *cobra.Command {
	var threshold float64
	var includeDaily bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "archaeology <topic>",
		Short: "Trace a topic's activity over time",
		Long: `Trace when a topic was active in the vault.

Notes similar to the topic are bucketed by month into a timeline with
peak and dormant periods. Daily notes are excluded unless
--include-daily is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.Join(args, " ")

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			engine, err := newEngine(ctx, cfg, cliLogger(flags.debug))
			if err != nil {
				return err
			}
			defer engine.Close()

			tl, err := engine.Archaeology(ctx, topic, threshold, !includeDaily)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tl)
			}

			noColor := !ui.IsTTY(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderTimeline(tl, noColor))
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.25, "Minimum similarity for a note to count")
	cmd.Flags().BoolVar(&includeDaily, "include-daily", false, "Include notes tagged daily")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the timeline as JSON")

	return cmd
}
