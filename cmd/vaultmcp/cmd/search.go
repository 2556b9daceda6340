package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultmcp/vaultmcp/internal/search"
	"github.com/vaultmcp/vaultmcp/internal/ui"
)

// newSearchCmd creates the search command.
func newSearchCmd(flags *rootFlags) *cobra.Command {
	var limit int
	var profileName string
	var semanticWeight float64
	var lexicalWeight float64
	var rerank bool
	var maxAgeDays int
	var dedup string
	var includeTypes []string
	var excludeTypes []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vault",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

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

			opts := search.Options{
				Limit:        limit,
				Profile:      profileName,
				DedupMode:    dedup,
				IncludeTypes: includeTypes,
				ExcludeTypes: excludeTypes,
			}
			if cmd.Flags().Changed("semantic-weight") {
				opts.SemanticWeight = &semanticWeight
			}
			if cmd.Flags().Changed("lexical-weight") {
				opts.LexicalWeight = &lexicalWeight
			}
			if cmd.Flags().Changed("rerank") {
				opts.Rerank = &rerank
			}
			if cmd.Flags().Changed("max-age-days") {
				opts.MaxAgeDays = &maxAgeDays
			}

			resp, err := engine.Search(ctx, query, opts)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			noColor := !ui.IsTTY(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderResults(resp, noColor))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default 10)")
	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "Search profile: default, repos, recent, deep, keywords")
	cmd.Flags().Float64Var(&semanticWeight, "semantic-weight", 0, "Override the profile's semantic weight")
	cmd.Flags().Float64Var(&lexicalWeight, "lexical-weight", 0, "Override the profile's lexical weight")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Override cross-encoder reranking")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "Only consider notes modified within this many days")
	cmd.Flags().StringVar(&dedup, "dedup", "", "Chunk deduplication: best or all")
	cmd.Flags().StringSliceVar(&includeTypes, "type", nil, "Only return notes with this front-matter type")
	cmd.Flags().StringSliceVar(&excludeTypes, "exclude-type", nil, "Drop notes with this front-matter type")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full response as JSON")

	return cmd
}
