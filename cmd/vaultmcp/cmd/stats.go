package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the stats command.
func newStatsCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			stats := engine.Stats()
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			out := cmd.OutOrStdout()
			if stats.ChunkCount == 0 {
				fmt.Fprintln(out, "No index found. Run 'vaultmcp index' first.")
				return nil
			}
			fmt.Fprintf(out, "Vault:     %s\n", stats.VaultPath)
			fmt.Fprintf(out, "Documents: %d\n", stats.DocumentCount)
			fmt.Fprintf(out, "Chunks:    %d\n", stats.ChunkCount)
			fmt.Fprintf(out, "Encoder:   %s (%d dims)\n", stats.EncoderName, stats.Dimension)
			fmt.Fprintf(out, "Indexed:   %s\n", stats.IndexedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Profiles:  %s\n", strings.Join(engine.ProfileNames(), ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output statistics as JSON")
	return cmd
}
