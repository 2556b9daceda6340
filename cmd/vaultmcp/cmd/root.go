// Package cmd provides the CLI commands for vaultmcp.
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultmcp/vaultmcp/internal/config"
	"github.com/vaultmcp/vaultmcp/internal/service"
	"github.com/vaultmcp/vaultmcp/pkg/version"
)

// rootFlags are shared across subcommands via persistent flags.
type rootFlags struct {
	vault   string
	storage string
	encoder string
	debug   bool
}

// NewRootCmd creates the root command for the vaultmcp CLI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "vaultmcp",
		Short: "Local semantic search over a Markdown note vault",
		Long: `vaultmcp indexes a Markdown note vault and serves hybrid search
(BM25 + semantic embeddings) over MCP and HTTP, entirely locally.

Point it at a vault with --vault or run it from inside one.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("vaultmcp version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.vault, "vault", ".", "Vault root directory")
	cmd.PersistentFlags().StringVar(&flags.storage, "storage", "", "Index storage directory (default <vault>/.vaultmcp)")
	cmd.PersistentFlags().StringVar(&flags.encoder, "encoder", "", "Embedding backend: auto, ollama, or static")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newIndexCmd(flags))
	cmd.AddCommand(newSearchCmd(flags))
	cmd.AddCommand(newArchaeologyCmd(flags))
	cmd.AddCommand(newStatsCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the effective configuration from file, environment,
// and flags, in ascending precedence.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.vault)
	if err != nil {
		return nil, err
	}
	if flags.storage != "" {
		cfg.Storage.Dir = flags.storage
	}
	if flags.encoder != "" {
		cfg.Encoder.Kind = flags.encoder
	}
	if flags.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// cliLogger returns a quiet stderr logger for one-shot commands; the serve
// command sets up file logging instead.
func cliLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine builds the engine and loads any persisted index.
func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.Engine, error) {
	engine, err := service.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := engine.Load(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return engine, nil
}
