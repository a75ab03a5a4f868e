package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/liteforge/internal/cli"
	"github.com/aretw0/liteforge/pkg/adapters/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes LiteForge to MCP clients: the build_app and list_artifacts tools
and the liteforge://manifest resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		logger := commandLogger(cmd, cfg, false)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		forge, closeForge, err := cli.CreateForge(ctx, cfg, logger, cli.ForgeOptions{RejectWhenBusy: true})
		if err != nil {
			return err
		}
		defer closeForge()

		srv := mcp.NewServer(forge,
			mcp.WithLogger(logger),
			mcp.WithManifest(cli.CreateManifestStore(ctx, cfg, logger)),
		)

		switch transport {
		case "stdio":
			logger.Info("Starting LiteForge MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting LiteForge MCP Server (SSE)", "addr", addr)
			if err := srv.ServeSSE(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8080", "Address to listen on (only for SSE)")
}
