package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/liteforge/internal/cli"
	httpAdapter "github.com/aretw0/liteforge/pkg/adapters/http"
)

// shutdownTimeout bounds graceful shutdown. Builds still streaming are cancelled after it.
const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web builder",
	Long: `Starts the HTTP server exposing the upload form, the build endpoint streaming
server-sent events, artifact downloads and the manifest API.
A build request arriving while another build runs is rejected with 409.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		logger := commandLogger(cmd, cfg, false)

		baseCtx, cancelBuilds := context.WithCancel(context.Background())
		defer cancelBuilds()

		forge, closeForge, err := cli.CreateForge(baseCtx, cfg, logger, cli.ForgeOptions{RejectWhenBusy: true})
		if err != nil {
			return err
		}
		defer closeForge()

		store := cli.CreateManifestStore(baseCtx, cfg, logger)
		handler := httpAdapter.NewHandler(forge,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithManifest(store),
		)

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(_ net.Listener) context.Context { return baseCtx },
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting LiteForge server", "addr", srv.Addr, "project", forge.Project().Root)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				cancelBuilds()
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "err", err)
				}
			}
			logger.Info("LiteForge server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":3000", "Address to listen on")
}
