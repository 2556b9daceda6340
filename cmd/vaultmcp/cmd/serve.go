package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaultmcp/vaultmcp/internal/httpapi"
	"github.com/vaultmcp/vaultmcp/internal/logging"
	"github.com/vaultmcp/vaultmcp/internal/mcp"
)

// newServeCmd creates the serve command.
func newServeCmd(flags *rootFlags) *cobra.Command {
	var transport string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search server",
		Long: `Run the long-lived search server.

The mcp transport speaks the Model Context Protocol over stdio, for AI
clients. The http transport serves /search, /archaeology, /stats,
/reindex, and /healthz on the configured address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if watch {
				cfg.Index.Watch = true
			}

			// Stdout belongs to the MCP stdio transport; logs go to the
			// rotated file, mirrored to stderr.
			logger, cleanup, err := logging.Setup(cfg.Logging)
			if err != nil {
				return err
			}
			defer cleanup()
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engine, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.StartWatcher(ctx); err != nil {
				return err
			}
			engine.StartMetricsFlusher(ctx)

			switch transport {
			case "mcp", "stdio":
				srv, err := mcp.NewServer(engine, logger)
				if err != nil {
					return err
				}
				return srv.Serve(ctx)
			case "http":
				srv, err := httpapi.New(httpapi.Config{
					Engine:           engine,
					Logger:           logger,
					ReindexPerMinute: cfg.Server.ReindexPerMinute,
				})
				if err != nil {
					return err
				}
				addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
				return srv.Serve(ctx, addr)
			default:
				return fmt.Errorf("unknown transport: %s (supported: mcp, http)", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "mcp", "Transport: mcp (stdio) or http")
	cmd.Flags().BoolVar(&watch, "watch", false, "Watch the vault and reindex on changes")

	return cmd
}
