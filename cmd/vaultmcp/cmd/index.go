package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultmcp/vaultmcp/internal/index"
	"github.com/vaultmcp/vaultmcp/internal/ui"
)

// newIndexCmd creates the index command.
func newIndexCmd(flags *rootFlags) *cobra.Command {
	var force bool
	var full bool
	var noChunking bool
	var chunkSize int
	var chunkOverlap int
	var plain bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the vault index",
		Long: `Build or update the vault index.

Incremental by default: only new, modified, and deleted notes are
processed. Use --full to rebuild from scratch, --force to adopt a
storage directory that belongs to a different vault.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			logger := cliLogger(flags.debug)
			ctx := cmd.Context()

			engine, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			renderer := ui.NewRenderer(ui.Config{
				Output:     cmd.ErrOrStderr(),
				ForcePlain: plain,
				VaultName:  cfg.Vault.Path,
			})
			if err := renderer.Start(ctx); err != nil {
				return err
			}
			defer renderer.Stop()

			opts := index.BuildOptions{
				Force: force,
				Full:  full,
				Progress: func(stage string, done, total int) {
					renderer.Update(ui.Stage(stage), done, total)
				},
			}
			if noChunking {
				disabled := false
				opts.Chunking = &disabled
			}
			opts.ChunkSize = chunkSize
			opts.ChunkOverlap = chunkOverlap

			started := time.Now()
			res, err := engine.Reindex(ctx, opts)
			if err != nil {
				return err
			}

			stats := engine.Stats()
			renderer.Complete(ui.IndexSummary{
				New:      res.New,
				Modified: res.Modified,
				Deleted:  res.Deleted,
				Total:    res.Total,
				UpToDate: res.UpToDate,
				Elapsed:  time.Since(started).Round(100 * time.Millisecond).String(),
				Encoder:  stats.EncoderName,
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Override the vault-safety check")
	cmd.Flags().BoolVar(&full, "full", false, "Rebuild from scratch")
	cmd.Flags().BoolVar(&noChunking, "no-chunking", false, "Index whole notes without windowing")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Override the chunk window size")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Override the chunk overlap")
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain text progress output")

	return cmd
}
